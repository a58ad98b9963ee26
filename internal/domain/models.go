package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MinNameLength is the minimum trimmed display name length, in characters.
const MinNameLength = 3

// Identity is the stable per-user key supplied by a transport, e.g. "tg:12345".
type Identity string

// Question is one immutable entry of a question bank.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Text         string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctAnswerIndex" yaml:"correct_answer_index"`
}

// Variant is a named test configuration.
type Variant struct {
	Name             string
	Title            string
	Source           string
	QuestionsPerTest int
}

// Label returns the human readable variant name.
func (v Variant) Label() string {
	if v.Title != "" {
		return v.Title
	}
	return v.Name
}

// SessionStatus is the lifecycle status of a test attempt.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Session is one attempt at a Variant by one Identity.
type Session struct {
	ID             int64
	Identity       Identity
	DisplayName    string
	Variant        string
	TotalQuestions int
	Score          int
	Status         SessionStatus
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// AnswerEntry is one question instance within a Session. Position is the 0-based serving order.
type AnswerEntry struct {
	ID              int64
	SessionID       int64
	Position        int
	QuestionID      string
	QuestionText    string
	Options         []string
	CorrectIndex    int
	UserOptionIndex *int
	IsCorrect       *bool
	AnsweredAt      *time.Time
}

// Answered reports whether the entry already carries the user's answer.
func (e AnswerEntry) Answered() bool {
	return e.UserOptionIndex != nil
}

// FinalScore summarizes a completed session.
type FinalScore struct {
	Score          int
	TotalQuestions int
	CompletedAt    time.Time
}

// Percent returns the rounded score percentage.
func (f FinalScore) Percent() int {
	return Percent(f.Score, f.TotalQuestions)
}

// Percent returns score/total as a rounded percentage, 0 when total is 0.
func Percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*100 + total/2) / total
}

// NormalizeName trims a user supplied display name and validates its length.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < MinNameLength {
		return "", ErrNameTooShort
	}
	return name, nil
}

// ValidateQuestions checks a loaded bank: unique ids, at least two options, correct index in range.
func ValidateQuestions(questions []Question) error {
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d: id required", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %q: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %q: text required", q.ID)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %q: at least two options required", q.ID)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("question %q: correct index %d out of range", q.ID, q.CorrectIndex)
		}
	}
	return nil
}
