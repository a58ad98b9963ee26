// Package notify delivers completed test transcripts to administrators.
package notify

import (
	"fmt"
	"strings"

	"quizbot-service/internal/domain"
)

// answersPerMessage keeps chat digests under messenger length limits.
const answersPerMessage = 10

const timeLayout = "02.01.2006 15:04"

func header(r domain.SessionReport) string {
	s := r.Session
	var b strings.Builder
	fmt.Fprintf(&b, "New test result\n\n")
	fmt.Fprintf(&b, "Name: %s\n", s.DisplayName)
	fmt.Fprintf(&b, "Variant: %s\n", s.Variant)
	fmt.Fprintf(&b, "Result: %d/%d (%d%%)\n", s.Score, s.TotalQuestions, domain.Percent(s.Score, s.TotalQuestions))
	if s.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", s.CompletedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "Session: #%d", s.ID)
	return b.String()
}

func answerLine(a domain.AnswerView) string {
	mark := "✗"
	if a.IsCorrect {
		mark = "✓"
	}
	line := fmt.Sprintf("%d. %s %s\nAnswer: %s", a.Position+1, mark, a.QuestionText, a.UserAnswer())
	if !a.IsCorrect {
		line += fmt.Sprintf("\nCorrect: %s", a.CorrectAnswer())
	}
	return line
}

// answerChunks groups the per-question lines into messages of answersPerMessage.
func answerChunks(answers []domain.AnswerView) []string {
	var chunks []string
	for start := 0; start < len(answers); start += answersPerMessage {
		end := start + answersPerMessage
		if end > len(answers) {
			end = len(answers)
		}
		lines := make([]string, 0, end-start)
		for _, a := range answers[start:end] {
			lines = append(lines, answerLine(a))
		}
		chunks = append(chunks, fmt.Sprintf("Answers %d-%d:\n\n%s", start+1, end, strings.Join(lines, "\n\n")))
	}
	return chunks
}

// markdownTranscript renders the full report as Markdown for e-mail bodies.
func markdownTranscript(r domain.SessionReport) string {
	s := r.Session
	var b strings.Builder
	fmt.Fprintf(&b, "# Test result: %s\n\n", escapeMarkdown(s.DisplayName))
	fmt.Fprintf(&b, "- **Variant:** %s\n", escapeMarkdown(s.Variant))
	fmt.Fprintf(&b, "- **Result:** %d/%d (%d%%)\n", s.Score, s.TotalQuestions, domain.Percent(s.Score, s.TotalQuestions))
	if s.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed:** %s\n", s.CompletedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "- **Identity:** %s\n\n", escapeMarkdown(string(s.Identity)))

	b.WriteString("| # | Question | Answer | Correct answer | Result |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, a := range r.Answers {
		result := "wrong"
		if a.IsCorrect {
			result = "correct"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			a.Position+1, cell(a.QuestionText), cell(a.UserAnswer()), cell(a.CorrectAnswer()), result)
	}
	return b.String()
}

func cell(s string) string {
	return escapeMarkdown(strings.ReplaceAll(s, "\n", " "))
}

// markdownSpecial holds every character that could start Markdown or inline HTML.
const markdownSpecial = "\\`*_{}[]()#+-.!:|&<>~^$="

// escapeMarkdown makes user supplied text render literally.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
