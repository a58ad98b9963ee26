package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/sendgrid"
	"quizbot-service/internal/logger"
)

func report(answers int) domain.SessionReport {
	completed := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	r := domain.SessionReport{Session: domain.SessionSummary{
		ID: 3, Identity: "tg:1", DisplayName: "Alice", Variant: "basic",
		Score: answers - 1, TotalQuestions: answers, Status: "completed", CompletedAt: &completed,
	}}
	for i := 0; i < answers; i++ {
		user := 0
		if i == 0 {
			user = 1
		}
		r.Answers = append(r.Answers, domain.AnswerView{
			Position: i, QuestionText: "Q|" + string(rune('A'+i)), Options: []string{"yes", "no"},
			CorrectIndex: 0, UserOptionIndex: &user, IsCorrect: user == 0,
		})
	}
	return r
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent map[string][]string
	fail string
}

func (m *recordingMessenger) Send(_ context.Context, chat string, reply domain.Reply) error {
	if chat == m.fail {
		return errors.New("chat unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[chat] = append(m.sent[chat], reply.Text)
	return nil
}

func (m *recordingMessenger) Acknowledge(context.Context, domain.Event, string) error { return nil }
func (m *recordingMessenger) DismissChoices(context.Context, domain.Event) error      { return nil }

func TestChatDigestChunksAnswers(t *testing.T) {
	m := &recordingMessenger{fail: "tg:-2"}
	digest := NewChatDigest(m, []string{"tg:-1", "tg:-2", "tg:-3"}, logger.NewNop())

	err := digest.Notify(context.Background(), report(23))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tg:-2")

	for _, chat := range []string{"tg:-1", "tg:-3"} {
		msgs := m.sent[chat]
		require.Len(t, msgs, 4, chat)
		assert.Contains(t, msgs[0], "Alice")
		assert.Contains(t, msgs[0], "22/23 (96%)")
		assert.True(t, strings.HasPrefix(msgs[1], "Answers 1-10:"))
		assert.True(t, strings.HasPrefix(msgs[3], "Answers 21-23:"))
		assert.Contains(t, msgs[1], "Correct: yes")
	}
}

type fakeEmailClient struct {
	req sendgrid.SendEmailRequest
}

func (c *fakeEmailClient) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	c.req = req
	return &sendgrid.SendEmailResult{StatusCode: 202}, nil
}

func TestEmailRendersTable(t *testing.T) {
	client := &fakeEmailClient{}
	n := NewEmail(client, []string{"admin@example.com"})

	require.NoError(t, n.Notify(context.Background(), report(2)))
	assert.Equal(t, "Test result: Alice - 1/2 (50%)", client.req.Subject)
	assert.Equal(t, "admin@example.com", client.req.To[0].Email)
	assert.Contains(t, client.req.HTML, "<table>")
	assert.Contains(t, client.req.HTML, "Alice")
}

func TestEmailEscapesUserText(t *testing.T) {
	client := &fakeEmailClient{}
	n := NewEmail(client, []string{"admin@example.com"})

	r := report(2)
	r.Session.DisplayName = "Eve<b>x</b>[a](http://x)"
	r.Answers[0].Options = []string{"*bold* <img src=x>", "no"}

	require.NoError(t, n.Notify(context.Background(), r))
	body := client.req.HTML
	assert.Contains(t, body, "Eve")
	assert.Contains(t, body, "<table>")
	for _, markup := range []string{"<b>", "<img", "<a ", "<strong>bold", "<em>bold"} {
		assert.NotContains(t, body, markup)
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, domain.SessionReport) error { return errors.New("down") }

func TestMultiJoinsErrors(t *testing.T) {
	client := &fakeEmailClient{}
	err := Multi{failingNotifier{}, NewEmail(client, []string{"a@example.com"})}.Notify(context.Background(), report(1))
	require.Error(t, err)
	assert.NotEmpty(t, client.req.Subject)
}
