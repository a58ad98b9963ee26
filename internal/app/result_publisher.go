package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

// ResultPublisher hands completed transcripts to a Notifier in the background.
// Failures are logged and never reach the user.
type ResultPublisher struct {
	reader   TranscriptReader
	notifier Notifier
	log      *logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewResultPublisher(reader TranscriptReader, notifier Notifier, log *logger.Logger) *ResultPublisher {
	return &ResultPublisher{reader: reader, notifier: notifier, log: log, timeout: 30 * time.Second}
}

// Publish returns immediately. A nil publisher is a no-op.
func (p *ResultPublisher) Publish(sessionID int64) {
	if p == nil || p.notifier == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("result notification panicked", "session", sessionID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.publish(ctx, sessionID); err != nil {
			p.log.Error("result notification failed", "session", sessionID, "error", err)
			return
		}
		p.log.Info("result notification sent", "session", sessionID)
	}()
}

func (p *ResultPublisher) publish(ctx context.Context, sessionID int64) error {
	report, err := p.reader.Detail(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: load transcript: %w", domain.ErrNotification, err)
	}
	if err := p.notifier.Notify(ctx, report); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	return nil
}

// Wait blocks until in-flight notifications finish.
func (p *ResultPublisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
