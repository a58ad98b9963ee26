package domain

import (
	"strings"
	"time"
)

// State is the persisted step an identity is at in the interaction flow.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingName    State = "awaiting_name"
	StateAwaitingVariant State = "awaiting_variant"
	StateTesting         State = "testing"
)

// ConversationState is the per-identity row. Idle identities have no row.
type ConversationState struct {
	Identity             Identity
	State                State
	SessionID            *int64
	PendingName          *string
	CurrentQuestionIndex int
	UpdatedAt            time.Time
}

// IdleState is what a missing row means.
func IdleState(identity Identity) ConversationState {
	return ConversationState{Identity: identity, State: StateIdle}
}

// Testing reports whether the row points at an active session.
func (s ConversationState) Testing() bool {
	return s.State == StateTesting && s.SessionID != nil
}

// EventKind distinguishes inbound transport events.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventChoice
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// Commands understood by the conversation.
const (
	CommandStart = "start"
	CommandHelp  = "help"
)

// Event is an inbound transport event keyed by identity.
//
// Chat is the transport address replies go to. AckID and MessageRef are transport
// handles for the button press (callback id and the message carrying the buttons).
type Event struct {
	Kind       EventKind
	Identity   Identity
	Chat       string
	Command    string
	Text       string
	Data       string
	AckID      string
	MessageRef string
	DeliveryID string
}

// Choice is one button of a choice set.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is an outbound message with an optional choice set.
type Reply struct {
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
}

// Address joins a transport scheme and a transport-local id, e.g. Address("tg", "42") == "tg:42".
func Address(scheme, id string) string {
	return scheme + ":" + id
}

// SplitAddress is the inverse of Address.
func SplitAddress(addr string) (scheme, id string, ok bool) {
	scheme, id, ok = strings.Cut(addr, ":")
	if !ok || scheme == "" || id == "" {
		return "", "", false
	}
	return scheme, id, true
}
