package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestEventFromCommand(t *testing.T) {
	ev, ok := EventFromUpdate(tgbotapi.Update{
		UpdateID: 10,
		Message: &tgbotapi.Message{
			MessageID: 5,
			From:      &tgbotapi.User{ID: 42},
			Chat:      &tgbotapi.Chat{ID: 42},
			Text:      "/start",
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		},
	})
	if !ok {
		t.Fatalf("expected event")
	}
	if ev.Kind != domain.EventCommand || ev.Command != domain.CommandStart {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Identity != "tg:42" || ev.Chat != "tg:42" || ev.DeliveryID != "tg:update:10" {
		t.Fatalf("unexpected addressing %+v", ev)
	}
}

func TestEventFromTextAndCallback(t *testing.T) {
	ev, ok := EventFromUpdate(tgbotapi.Update{UpdateID: 11, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 42}, Text: "Alice",
	}})
	if !ok || ev.Kind != domain.EventText || ev.Text != "Alice" {
		t.Fatalf("unexpected text event %+v", ev)
	}

	ev, ok = EventFromUpdate(tgbotapi.Update{UpdateID: 12, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Data:    "answer_0_1",
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: 42}},
	}})
	if !ok || ev.Kind != domain.EventChoice || ev.Data != "answer_0_1" || ev.AckID != "cb-1" || ev.MessageRef != "77" {
		t.Fatalf("unexpected choice event %+v", ev)
	}

	if _, ok := EventFromUpdate(tgbotapi.Update{UpdateID: 13, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 42},
	}}); ok {
		t.Fatalf("expected message without text to be skipped")
	}
}

func TestMessengerSendsKeyboardAndCallbacks(t *testing.T) {
	bot := &fakeBot{}
	m := NewMessenger(bot)
	ctx := context.Background()

	err := m.Send(ctx, "tg:42", domain.Reply{Text: "Question 1", Choices: []domain.Choice{
		{Label: "3", Data: "answer_0_0"}, {Label: "4", Data: "answer_0_1"},
	}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := domain.Event{Chat: "tg:42", AckID: "cb-1", MessageRef: "77"}
	if err := m.Acknowledge(ctx, ev, "Correct!"); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := m.DismissChoices(ctx, ev); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := m.Send(ctx, "ws:42", domain.Reply{Text: "x"}); err == nil {
		t.Fatalf("expected non-telegram chat to be rejected")
	}

	if len(bot.sent) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 42 || msg.Text != "Question 1" {
		t.Fatalf("unexpected message %#v", bot.sent[0])
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 2 || *kb.InlineKeyboard[1][0].CallbackData != "answer_0_1" {
		t.Fatalf("unexpected keyboard %#v", msg.ReplyMarkup)
	}
	cb, ok := bot.sent[1].(tgbotapi.CallbackConfig)
	if !ok || cb.CallbackQueryID != "cb-1" || cb.Text != "Correct!" {
		t.Fatalf("unexpected callback %#v", bot.sent[1])
	}
	edit, ok := bot.sent[2].(tgbotapi.EditMessageReplyMarkupConfig)
	if !ok || edit.MessageID != 77 || edit.ChatID != 42 || len(edit.ReplyMarkup.InlineKeyboard) != 0 {
		t.Fatalf("unexpected edit %#v", bot.sent[2])
	}
}

type recordingSubmitter struct {
	events []domain.Event
}

func (s *recordingSubmitter) Submit(_ context.Context, ev domain.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func TestWebhookSubmitsUpdates(t *testing.T) {
	sub := &recordingSubmitter{}
	h := NewWebhook(sub, logger.NewNop())

	body := `{"update_id":5,"message":{"message_id":1,"from":{"id":7},"chat":{"id":7},"text":"Alice"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sub.events) != 1 || sub.events[0].Text != "Alice" || sub.events[0].Identity != "tg:7" {
		t.Fatalf("unexpected events %+v", sub.events)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRegisterWebhook(t *testing.T) {
	bot := &fakeBot{}
	if err := RegisterWebhook(bot, "https://bot.example.com/telegram/webhook"); err != nil {
		t.Fatalf("register: %v", err)
	}
	wh, ok := bot.sent[0].(tgbotapi.WebhookConfig)
	if !ok || wh.URL.String() != "https://bot.example.com/telegram/webhook" {
		t.Fatalf("unexpected webhook config %#v", bot.sent[0])
	}
}

type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped bool
}

func (s *fakeSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return s.ch }
func (s *fakeSource) StopReceivingUpdates()                                      { s.stopped = true }

func TestPollerSubmitsUntilClosed(t *testing.T) {
	src := &fakeSource{ch: make(chan tgbotapi.Update, 2)}
	src.ch <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}}
	src.ch <- tgbotapi.Update{UpdateID: 2}
	close(src.ch)

	sub := &recordingSubmitter{}
	if err := NewPoller(src, sub, logger.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sub.events) != 1 || !src.stopped {
		t.Fatalf("expected one event and stop, got %d stopped=%v", len(sub.events), src.stopped)
	}
}
