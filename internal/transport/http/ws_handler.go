package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

// Scheme prefixes identities and chat addresses of websocket users.
const Scheme = "ws"

var errNotConnected = errors.New("websocket chat not connected")

// Submitter queues inbound events for the conversation.
type Submitter interface {
	Submit(ctx context.Context, ev domain.Event) error
}

// WSHandler is a chat transport over websockets. It is both the inbound side
// (ServeWS) and the app.Messenger for "ws:" chats.
//
// With a token secret the identity is the subject of an HS256 JWT passed as
// ?token=. Without one the client asserts its own identity through ?userId=,
// which is only fit for development and demos.
type WSHandler struct {
	submitter Submitter
	upgrader  websocket.Upgrader
	log       *logger.Logger
	secret    []byte

	mu    sync.RWMutex
	conns map[string]*wsConn
	seq   atomic.Int64
}

type wsConn struct {
	send chan outboundMessage[any]
	done chan struct{}
}

type WSOption func(*WSHandler)

// WithTokenSecret makes ServeWS take the identity from a signed token only.
func WithTokenSecret(secret string) WSOption {
	return func(h *WSHandler) {
		if secret != "" {
			h.secret = []byte(secret)
		}
	}
}

func NewWSHandler(submitter Submitter, log *logger.Logger, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		submitter: submitter,
		log:       log,
		conns:     make(map[string]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IssueToken signs a websocket token for userID. It is used by whatever
// authenticates users in front of the chat.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// userID resolves the connecting user.
func (h *WSHandler) userID(r *http.Request) (string, int) {
	if h.secret == nil {
		if id := r.URL.Query().Get("userId"); id != "" {
			return id, 0
		}
		return "", http.StatusBadRequest
	}
	raw := r.URL.Query().Get("token")
	if raw == "" {
		return "", http.StatusUnauthorized
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", http.StatusUnauthorized
	}
	return claims.Subject, 0
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type commandPayload struct {
	Name string `json:"name"`
}

type textPayload struct {
	Text string `json:"text"`
}

type choicePayload struct {
	Data      string `json:"data"`
	MessageID int64  `json:"messageId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type messagePayload struct {
	ID      int64           `json:"id"`
	Text    string          `json:"text"`
	Choices []domain.Choice `json:"choices,omitempty"`
}

type ackPayload struct {
	Text string `json:"text"`
}

type dismissPayload struct {
	MessageID int64 `json:"messageId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and feeds the user's messages
// into the conversation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, status := h.userID(r)
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	chat := domain.Address(Scheme, userID)
	c := &wsConn{send: make(chan outboundMessage[any], 16), done: make(chan struct{})}
	h.register(chat, c)
	defer h.unregister(chat, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Warn("ws write error", "chat", chat, "error", err)
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ev, ok := h.toEvent(chat, inbound)
		if !ok {
			h.enqueue(c, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message"}})
			continue
		}
		if err := h.submitter.Submit(r.Context(), ev); err != nil {
			h.log.Warn("ws submit failed", "chat", chat, "error", err)
			break
		}
	}

	close(c.done)
	<-writerDone
}

func (h *WSHandler) toEvent(chat string, in inboundMessage) (domain.Event, bool) {
	ev := domain.Event{Identity: domain.Identity(chat), Chat: chat}
	switch in.Type {
	case "command":
		var p commandPayload
		if json.Unmarshal(in.Payload, &p) != nil || p.Name == "" {
			return ev, false
		}
		ev.Kind, ev.Command = domain.EventCommand, p.Name
	case "text":
		var p textPayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return ev, false
		}
		ev.Kind, ev.Text = domain.EventText, p.Text
	case "choice":
		var p choicePayload
		if json.Unmarshal(in.Payload, &p) != nil {
			return ev, false
		}
		ev.Kind, ev.Data = domain.EventChoice, p.Data
		ev.AckID = strconv.FormatInt(h.seq.Add(1), 10)
		if p.MessageID > 0 {
			ev.MessageRef = strconv.FormatInt(p.MessageID, 10)
		}
	default:
		return ev, false
	}
	return ev, true
}

func (h *WSHandler) Send(ctx context.Context, chat string, reply domain.Reply) error {
	return h.deliver(ctx, chat, outboundMessage[any]{Type: "message", Payload: messagePayload{
		ID:      h.seq.Add(1),
		Text:    reply.Text,
		Choices: reply.Choices,
	}})
}

func (h *WSHandler) Acknowledge(ctx context.Context, ev domain.Event, text string) error {
	return h.deliver(ctx, ev.Chat, outboundMessage[any]{Type: "ack", Payload: ackPayload{Text: text}})
}

func (h *WSHandler) DismissChoices(ctx context.Context, ev domain.Event) error {
	if ev.MessageRef == "" {
		return nil
	}
	id, err := strconv.ParseInt(ev.MessageRef, 10, 64)
	if err != nil {
		return err
	}
	return h.deliver(ctx, ev.Chat, outboundMessage[any]{Type: "dismiss", Payload: dismissPayload{MessageID: id}})
}

func (h *WSHandler) deliver(ctx context.Context, chat string, msg outboundMessage[any]) error {
	h.mu.RLock()
	c, ok := h.conns[chat]
	h.mu.RUnlock()
	if !ok {
		return errNotConnected
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) enqueue(c *wsConn, msg outboundMessage[any]) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// register replaces any older connection of the same chat.
func (h *WSHandler) register(chat string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[chat] = c
}

func (h *WSHandler) unregister(chat string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[chat] == c {
		delete(h.conns, chat)
	}
}
