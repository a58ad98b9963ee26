package notify

import (
	"context"
	"errors"
	"fmt"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

// ChatDigest posts a header and the chunked answers to each admin chat.
type ChatDigest struct {
	messenger app.Messenger
	chats     []string
	log       *logger.Logger
}

func NewChatDigest(messenger app.Messenger, chats []string, log *logger.Logger) *ChatDigest {
	return &ChatDigest{messenger: messenger, chats: chats, log: log}
}

// Notify keeps going past a failing chat; the returned error joins every failure.
func (n *ChatDigest) Notify(ctx context.Context, report domain.SessionReport) error {
	messages := append([]string{header(report)}, answerChunks(report.Answers)...)

	var errs []error
	for _, chat := range n.chats {
		if err := n.sendAll(ctx, chat, messages); err != nil {
			n.log.Warn("admin digest failed", "chat", chat, "session", report.Session.ID, "error", err)
			errs = append(errs, fmt.Errorf("chat %s: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}

func (n *ChatDigest) sendAll(ctx context.Context, chat string, messages []string) error {
	for _, text := range messages {
		if err := n.messenger.Send(ctx, chat, domain.Reply{Text: text}); err != nil {
			return err
		}
	}
	return nil
}
