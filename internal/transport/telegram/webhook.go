package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot-service/internal/logger"
)

// Webhook receives updates pushed by Telegram.
type Webhook struct {
	submitter Submitter
	log       *logger.Logger
}

func NewWebhook(submitter Submitter, log *logger.Logger) *Webhook {
	return &Webhook{submitter: submitter, log: log}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	// Telegram retries non-2xx responses, so unusable updates are still accepted.
	if ev, ok := EventFromUpdate(update); ok {
		if err := h.submitter.Submit(context.WithoutCancel(r.Context()), ev); err != nil {
			h.log.Warn("telegram submit failed", "update", update.UpdateID, "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// RegisterWebhook points Telegram at url.
func RegisterWebhook(bot Bot, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func DeleteWebhook(bot Bot) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
