package app

import (
	"context"
	"time"

	"quizbot-service/internal/domain"
)

// BankRepository returns the questions of a bank source, e.g. "file:questions.json".
type BankRepository interface {
	GetBank(ctx context.Context, source string) ([]domain.Question, error)
}

// StateRepository persists the per-identity conversation row.
type StateRepository interface {
	// GetState returns domain.ErrStateNotFound when the identity has no row.
	GetState(ctx context.Context, identity domain.Identity) (domain.ConversationState, error)
	SaveState(ctx context.Context, state domain.ConversationState) error
	AdvanceQuestion(ctx context.Context, identity domain.Identity, sessionID int64, index int) error
	ClearState(ctx context.Context, identity domain.Identity) error
}

// SessionRepository persists sessions and their answer log.
type SessionRepository interface {
	// InsertSession assigns s.ID. It returns domain.ErrActiveSession when the
	// identity already has an in-progress session.
	InsertSession(ctx context.Context, s *domain.Session) error
	InsertAnswerEntries(ctx context.Context, entries []domain.AnswerEntry) error
	SessionByID(ctx context.Context, id int64) (domain.Session, error)
	LatestCompletedSession(ctx context.Context, identity domain.Identity) (domain.Session, error)
	ActiveSession(ctx context.Context, identity domain.Identity) (domain.Session, error)
	AnswerEntry(ctx context.Context, sessionID int64, position int) (domain.AnswerEntry, error)
	// SaveAnswer writes the answer only if the entry is still unanswered and
	// reports whether it did.
	SaveAnswer(ctx context.Context, entryID int64, option int, correct bool, at time.Time) (bool, error)
	IncrementScore(ctx context.Context, sessionID int64) error
	// CompleteSession only transitions in-progress sessions.
	CompleteSession(ctx context.Context, sessionID int64, at time.Time) error
	CountAnswered(ctx context.Context, sessionID int64) (int, error)
	InTx(ctx context.Context, fn func(SessionRepository) error) error
}

// TranscriptReader loads the full transcript of a session.
type TranscriptReader interface {
	Detail(ctx context.Context, sessionID int64) (domain.SessionReport, error)
}

// Messenger is the outbound side of a transport.
type Messenger interface {
	Send(ctx context.Context, chat string, reply domain.Reply) error
	// Acknowledge answers a button press with a short transient notice.
	Acknowledge(ctx context.Context, ev domain.Event, text string) error
	// DismissChoices removes the buttons from the message the event came from.
	DismissChoices(ctx context.Context, ev domain.Event) error
}

// Locker serializes event handling per identity, possibly across replicas.
type Locker interface {
	Lock(ctx context.Context, identity domain.Identity) (unlock func(), err error)
}

// Deduper reports whether a transport delivery id is seen for the first time.
type Deduper interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
}

// Notifier delivers a completed session transcript somewhere outside the chat.
type Notifier interface {
	Notify(ctx context.Context, report domain.SessionReport) error
}
