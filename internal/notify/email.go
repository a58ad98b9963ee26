package notify

import (
	"context"
	"fmt"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/sendgrid"
)

// Email sends the transcript as an HTML table rendered from Markdown.
type Email struct {
	client     sendgrid.Client
	recipients []sendgrid.EmailAddress
}

func NewEmail(client sendgrid.Client, recipients []string) *Email {
	to := make([]sendgrid.EmailAddress, len(recipients))
	for i, r := range recipients {
		to[i] = sendgrid.EmailAddress{Email: r}
	}
	return &Email{client: client, recipients: to}
}

func (n *Email) Notify(ctx context.Context, report domain.SessionReport) error {
	s := report.Session
	md := markdownTranscript(report)
	_, err := n.client.Send(ctx, sendgrid.SendEmailRequest{
		To: n.recipients,
		Subject: fmt.Sprintf("Test result: %s - %d/%d (%d%%)",
			s.DisplayName, s.Score, s.TotalQuestions, domain.Percent(s.Score, s.TotalQuestions)),
		Text:       md,
		HTML:       renderHTML(md),
		Categories: []string{"test-result"},
	})
	if err != nil {
		return fmt.Errorf("email result: %w", err)
	}
	return nil
}

// renderHTML drops raw HTML and skips autolinking, so only the transcript's own
// structure becomes markup.
func renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions &^ parser.Autolink)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(md), p, r))
}
