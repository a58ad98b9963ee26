package notify

import (
	"context"
	"errors"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
)

// Multi fans a report out to every notifier.
type Multi []app.Notifier

func (m Multi) Notify(ctx context.Context, report domain.SessionReport) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
