package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizbot-service/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions"`

	ID             int64      `bun:"id,pk,autoincrement"`
	Identity       string     `bun:"identity,notnull"`
	DisplayName    string     `bun:"display_name,notnull"`
	Variant        string     `bun:"variant,notnull"`
	TotalQuestions int        `bun:"total_questions,notnull"`
	Score          int        `bun:"score,notnull"`
	Status         string     `bun:"status,notnull"`
	StartedAt      time.Time  `bun:"started_at,notnull"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

func (r sessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:             r.ID,
		Identity:       domain.Identity(r.Identity),
		DisplayName:    r.DisplayName,
		Variant:        r.Variant,
		TotalQuestions: r.TotalQuestions,
		Score:          r.Score,
		Status:         domain.SessionStatus(r.Status),
		StartedAt:      r.StartedAt.UTC(),
		CompletedAt:    utcPtr(r.CompletedAt),
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answer_log"`

	ID               int64      `bun:"id,pk,autoincrement"`
	SessionID        int64      `bun:"session_id,notnull"`
	Position         int        `bun:"position,notnull"`
	QuestionSourceID string     `bun:"question_source_id,notnull"`
	QuestionText     string     `bun:"question_text,notnull"`
	Options          string     `bun:"options,notnull"`
	CorrectIndex     int        `bun:"correct_option_index,notnull"`
	UserOptionIndex  *int       `bun:"user_option_index"`
	IsCorrect        *bool      `bun:"is_correct"`
	AnsweredAt       *time.Time `bun:"answered_at"`
}

func newAnswerRow(e domain.AnswerEntry) (answerRow, error) {
	options, err := json.Marshal(e.Options)
	if err != nil {
		return answerRow{}, fmt.Errorf("encode options: %w", err)
	}
	return answerRow{
		SessionID:        e.SessionID,
		Position:         e.Position,
		QuestionSourceID: e.QuestionID,
		QuestionText:     e.QuestionText,
		Options:          string(options),
		CorrectIndex:     e.CorrectIndex,
		UserOptionIndex:  e.UserOptionIndex,
		IsCorrect:        e.IsCorrect,
		AnsweredAt:       e.AnsweredAt,
	}, nil
}

func (r answerRow) toDomain() (domain.AnswerEntry, error) {
	var options []string
	if err := json.Unmarshal([]byte(r.Options), &options); err != nil {
		return domain.AnswerEntry{}, fmt.Errorf("decode options of answer %d: %w", r.ID, err)
	}
	return domain.AnswerEntry{
		ID:              r.ID,
		SessionID:       r.SessionID,
		Position:        r.Position,
		QuestionID:      r.QuestionSourceID,
		QuestionText:    r.QuestionText,
		Options:         options,
		CorrectIndex:    r.CorrectIndex,
		UserOptionIndex: r.UserOptionIndex,
		IsCorrect:       r.IsCorrect,
		AnsweredAt:      utcPtr(r.AnsweredAt),
	}, nil
}

type stateRow struct {
	bun.BaseModel `bun:"table:conversation_state"`

	Identity             string    `bun:"identity,pk"`
	State                string    `bun:"state,notnull"`
	SessionID            *int64    `bun:"session_id"`
	PendingName          *string   `bun:"pending_name"`
	CurrentQuestionIndex int       `bun:"current_question_index,notnull"`
	UpdatedAt            time.Time `bun:"updated_at,notnull"`
}

func (r stateRow) toDomain() domain.ConversationState {
	return domain.ConversationState{
		Identity:             domain.Identity(r.Identity),
		State:                domain.State(r.State),
		SessionID:            r.SessionID,
		PendingName:          r.PendingName,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type bankRow struct {
	bun.BaseModel `bun:"table:question_banks"`

	Name      string    `bun:"name,pk"`
	Data      string    `bun:"data,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
