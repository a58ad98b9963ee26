// Package reporting is the read side over completed tests: listings,
// transcripts, aggregate statistics and spreadsheet export.
package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/montanaflynn/stats"

	"quizbot-service/internal/config"
	"quizbot-service/internal/domain"
)

// Store reads sessions and the answer log. It never writes.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open wraps an existing connection pool opened for driver.
func Open(db *sql.DB, driver string) *Store {
	name := "postgres"
	if driver == config.DriverSQLite {
		name = "sqlite3"
	}
	return NewStore(sqlx.NewDb(db, name))
}

type sessionRecord struct {
	ID             int64  `db:"id"`
	Identity       string `db:"identity"`
	DisplayName    string `db:"display_name"`
	Variant        string `db:"variant"`
	Score          int    `db:"score"`
	TotalQuestions int    `db:"total_questions"`
	Status         string `db:"status"`
	StartedAt      dbTime `db:"started_at"`
	CompletedAt    dbTime `db:"completed_at"`
}

func (r sessionRecord) summary() domain.SessionSummary {
	return domain.SessionSummary{
		ID:             r.ID,
		Identity:       domain.Identity(r.Identity),
		DisplayName:    r.DisplayName,
		Variant:        r.Variant,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		Status:         r.Status,
		StartedAt:      r.StartedAt.Time,
		CompletedAt:    r.CompletedAt.Ptr(),
	}
}

type answerRecord struct {
	Position        int           `db:"position"`
	QuestionID      string        `db:"question_source_id"`
	QuestionText    string        `db:"question_text"`
	Options         string        `db:"options"`
	CorrectIndex    int           `db:"correct_option_index"`
	UserOptionIndex sql.NullInt64 `db:"user_option_index"`
	IsCorrect       sql.NullBool  `db:"is_correct"`
	AnsweredAt      dbTime        `db:"answered_at"`
}

func (r answerRecord) view() (domain.AnswerView, error) {
	var options []string
	if err := json.Unmarshal([]byte(r.Options), &options); err != nil {
		return domain.AnswerView{}, fmt.Errorf("decode options at position %d: %w", r.Position, err)
	}
	v := domain.AnswerView{
		Position:     r.Position,
		QuestionID:   r.QuestionID,
		QuestionText: r.QuestionText,
		Options:      options,
		CorrectIndex: r.CorrectIndex,
		IsCorrect:    r.IsCorrect.Valid && r.IsCorrect.Bool,
		AnsweredAt:   r.AnsweredAt.Ptr(),
	}
	if r.UserOptionIndex.Valid {
		idx := int(r.UserOptionIndex.Int64)
		v.UserOptionIndex = &idx
	}
	return v, nil
}

const sessionColumns = `id, identity, display_name, variant, score, total_questions, status, started_at, completed_at`

// List returns completed sessions, newest first.
func (s *Store) List(ctx context.Context) ([]domain.SessionSummary, error) {
	var records []sessionRecord
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE status = ?
		ORDER BY completed_at DESC, id DESC`), string(domain.SessionCompleted))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w: %w", domain.ErrStorage, err)
	}
	out := make([]domain.SessionSummary, len(records))
	for i, r := range records {
		out[i] = r.summary()
	}
	return out, nil
}

// Detail returns one session with its answers ordered by position.
func (s *Store) Detail(ctx context.Context, id int64) (domain.SessionReport, error) {
	var record sessionRecord
	err := s.db.GetContext(ctx, &record, s.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionReport{}, fmt.Errorf("session %d: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return domain.SessionReport{}, fmt.Errorf("session detail: %w: %w", domain.ErrStorage, err)
	}

	var answers []answerRecord
	err = s.db.SelectContext(ctx, &answers, s.db.Rebind(`
		SELECT position, question_source_id, question_text, options, correct_option_index,
		       user_option_index, is_correct, answered_at
		FROM answer_log
		WHERE session_id = ?
		ORDER BY position`), id)
	if err != nil {
		return domain.SessionReport{}, fmt.Errorf("session answers: %w: %w", domain.ErrStorage, err)
	}

	report := domain.SessionReport{Session: record.summary(), Answers: make([]domain.AnswerView, 0, len(answers))}
	for _, a := range answers {
		view, err := a.view()
		if err != nil {
			return domain.SessionReport{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		report.Answers = append(report.Answers, view)
	}
	return report, nil
}

// Statistics aggregates the raw scores of completed sessions.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	var scores []int
	err := s.db.SelectContext(ctx, &scores, s.db.Rebind(`SELECT score FROM sessions WHERE status = ?`),
		string(domain.SessionCompleted))
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("statistics: %w: %w", domain.ErrStorage, err)
	}
	return summarize(scores), nil
}

func summarize(scores []int) domain.Statistics {
	if len(scores) == 0 {
		return domain.Statistics{}
	}
	data := stats.LoadRawData(scores)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	stddev, _ := stats.StandardDeviation(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	return domain.Statistics{
		Count:   len(scores),
		Average: round2(mean),
		Median:  median,
		StdDev:  round2(stddev),
		Min:     int(lo),
		Max:     int(hi),
	}
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}

// dbTime scans timestamps from drivers that return either time.Time or text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t dbTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
