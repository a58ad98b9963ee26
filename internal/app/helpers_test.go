package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/memory"
	"quizbot-service/internal/infra/sqlstore"
	"quizbot-service/internal/infra/sqlstore/sqlstoretest"
	"quizbot-service/internal/logger"
)

// bank returns n questions whose correct option is always index 1.
func bank(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Text:         fmt.Sprintf("Question text %d", i+1),
			Options:      []string{"wrong", "right", "also wrong"},
			CorrectIndex: 1,
		}
	}
	return out
}

type fixture struct {
	store    *sqlstore.Store
	engine   *app.SessionEngine
	variants *app.Variants
}

func newFixture(t *testing.T, variants ...domain.Variant) fixture {
	t.Helper()
	if len(variants) == 0 {
		variants = []domain.Variant{{Name: "basic", Title: "Basics", Source: "static:basic", QuestionsPerTest: 3}}
	}
	store := sqlstore.New(sqlstoretest.Open(t))
	loader := memory.NewStaticBankLoader(map[string][]domain.Question{
		"static:basic": bank(5),
		"static:small": bank(2),
	})
	engine := app.NewSessionEngine(store, app.NewQuestionBank(memory.NewBankRepository(loader, 0)))
	list, err := app.NewVariants(variants)
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	return fixture{store: store, engine: engine, variants: list}
}

type ack struct {
	ackID string
	text  string
}

// recordingMessenger captures everything the conversation sends.
type recordingMessenger struct {
	mu        sync.Mutex
	sent      []domain.Reply
	acks      []ack
	dismissed []string
	failSend  bool
}

func (m *recordingMessenger) Send(_ context.Context, _ string, reply domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return fmt.Errorf("transport down")
	}
	m.sent = append(m.sent, reply)
	return nil
}

func (m *recordingMessenger) Acknowledge(_ context.Context, ev domain.Event, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, ack{ackID: ev.AckID, text: text})
	return nil
}

func (m *recordingMessenger) DismissChoices(_ context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dismissed = append(m.dismissed, ev.MessageRef)
	return nil
}

func (m *recordingMessenger) last() domain.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return domain.Reply{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMessenger) lastAck() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.acks) == 0 {
		return ""
	}
	return m.acks[len(m.acks)-1].text
}

func (m *recordingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

const (
	testIdentity domain.Identity = "ws:u1"
	testChat                     = "ws:u1"
)

func command(name string) domain.Event {
	return domain.Event{Kind: domain.EventCommand, Identity: testIdentity, Chat: testChat, Command: name}
}

func text(s string) domain.Event {
	return domain.Event{Kind: domain.EventText, Identity: testIdentity, Chat: testChat, Text: s}
}

func choice(data string) domain.Event {
	return domain.Event{Kind: domain.EventChoice, Identity: testIdentity, Chat: testChat, Data: data, AckID: "cb-" + data, MessageRef: "m1"}
}

func newConversation(f fixture, messenger app.Messenger, opts ...app.ConversationOption) *app.Conversation {
	opts = append([]app.ConversationOption{app.WithQuestionDelay(0)}, opts...)
	return app.NewConversation(f.engine, f.store, f.variants, messenger, logger.NewNop(), opts...)
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("expected %q to contain %q", got, want)
	}
}
