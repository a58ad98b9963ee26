package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

// Submitter queues inbound events for the conversation.
type Submitter interface {
	Submit(ctx context.Context, ev domain.Event) error
}

// UpdateSource is the long-polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller long-polls getUpdates and submits every usable update.
type Poller struct {
	source    UpdateSource
	submitter Submitter
	log       *logger.Logger
	timeout   int
}

func NewPoller(source UpdateSource, submitter Submitter, log *logger.Logger) *Poller {
	return &Poller{source: source, submitter: submitter, log: log, timeout: 60}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.source.GetUpdatesChan(cfg)
	defer p.source.StopReceivingUpdates()

	p.log.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := EventFromUpdate(update)
			if !ok {
				continue
			}
			if err := p.submitter.Submit(ctx, ev); err != nil {
				p.log.Warn("telegram submit failed", "update", update.UpdateID, "error", err)
			}
		}
	}
}
