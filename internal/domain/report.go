package domain

import "time"

// SessionSummary is the reporting view of one session.
type SessionSummary struct {
	ID             int64      `json:"id"`
	Identity       Identity   `json:"identity"`
	DisplayName    string     `json:"displayName"`
	Variant        string     `json:"variant"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// AnswerView is one decoded answer_log row.
type AnswerView struct {
	Position        int        `json:"position"`
	QuestionID      string     `json:"questionId"`
	QuestionText    string     `json:"questionText"`
	Options         []string   `json:"options"`
	CorrectIndex    int        `json:"correctIndex"`
	UserOptionIndex *int       `json:"userOptionIndex"`
	IsCorrect       bool       `json:"isCorrect"`
	AnsweredAt      *time.Time `json:"answeredAt,omitempty"`
}

// UserAnswer returns the chosen option text, empty when unanswered.
func (a AnswerView) UserAnswer() string {
	if a.UserOptionIndex == nil || *a.UserOptionIndex < 0 || *a.UserOptionIndex >= len(a.Options) {
		return ""
	}
	return a.Options[*a.UserOptionIndex]
}

// CorrectAnswer returns the correct option text.
func (a AnswerView) CorrectAnswer() string {
	if a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options) {
		return ""
	}
	return a.Options[a.CorrectIndex]
}

// SessionReport is the full transcript of a session. It is both the reporting
// detail view and the result notification payload.
type SessionReport struct {
	Session SessionSummary `json:"session"`
	Answers []AnswerView   `json:"answers"`
}

// Statistics aggregates completed sessions.
type Statistics struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stdDev"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}
