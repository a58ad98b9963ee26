package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
)

// Store persists sessions, the answer log, conversation state and question
// banks through bun. It serves both Postgres and SQLite.
type Store struct {
	db   *bun.DB
	conn bun.IDB
	now  func() time.Time
}

var (
	_ app.SessionRepository = (*Store)(nil)
	_ app.StateRepository   = (*Store)(nil)
)

func New(db *bun.DB) *Store {
	return &Store{db: db, conn: db, now: time.Now}
}

// InTx runs fn against a Store bound to one transaction. Nested calls reuse
// the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(app.SessionRepository) error) error {
	if _, ok := s.conn.(bun.Tx); ok {
		return fn(s)
	}
	var fnErr error
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(&Store{db: s.db, conn: tx, now: s.now})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return wrap("commit", err, nil)
	}
	return err
}

func (s *Store) InsertSession(ctx context.Context, session *domain.Session) error {
	row := &sessionRow{
		Identity:       string(session.Identity),
		DisplayName:    session.DisplayName,
		Variant:        session.Variant,
		TotalQuestions: session.TotalQuestions,
		Score:          session.Score,
		Status:         string(session.Status),
		StartedAt:      session.StartedAt,
		CompletedAt:    session.CompletedAt,
	}
	res, err := s.conn.NewInsert().Model(row).Returning("id").Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrActiveSession, session.Identity)
		}
		return wrap("insert session", err, nil)
	}
	if row.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return wrap("insert session id", err, nil)
		}
		row.ID = id
	}
	session.ID = row.ID
	return nil
}

func (s *Store) InsertAnswerEntries(ctx context.Context, entries []domain.AnswerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]answerRow, len(entries))
	for i, e := range entries {
		row, err := newAnswerRow(e)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		rows[i] = row
	}
	_, err := s.conn.NewInsert().Model(&rows).Exec(ctx)
	return wrap("insert answer entries", err, nil)
}

func (s *Store) SessionByID(ctx context.Context, id int64) (domain.Session, error) {
	var row sessionRow
	err := s.conn.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return domain.Session{}, wrap("session by id", err, domain.ErrSessionNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) LatestCompletedSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	return s.sessionWithStatus(ctx, identity, domain.SessionCompleted, "completed_at DESC")
}

func (s *Store) ActiveSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	return s.sessionWithStatus(ctx, identity, domain.SessionInProgress, "started_at DESC")
}

func (s *Store) sessionWithStatus(ctx context.Context, identity domain.Identity, status domain.SessionStatus, order string) (domain.Session, error) {
	var row sessionRow
	err := s.conn.NewSelect().Model(&row).
		Where("identity = ?", string(identity)).
		Where("status = ?", string(status)).
		OrderExpr(order).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Session{}, wrap("session by status", err, domain.ErrSessionNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) AnswerEntry(ctx context.Context, sessionID int64, position int) (domain.AnswerEntry, error) {
	var row answerRow
	err := s.conn.NewSelect().Model(&row).
		Where("session_id = ?", sessionID).
		Where("position = ?", position).
		Scan(ctx)
	if err != nil {
		return domain.AnswerEntry{}, wrap("answer entry", err, domain.ErrQuestionNotFound)
	}
	entry, err := row.toDomain()
	if err != nil {
		return domain.AnswerEntry{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return entry, nil
}

func (s *Store) SaveAnswer(ctx context.Context, entryID int64, option int, correct bool, at time.Time) (bool, error) {
	res, err := s.conn.NewUpdate().Model((*answerRow)(nil)).
		Set("user_option_index = ?", option).
		Set("is_correct = ?", correct).
		Set("answered_at = ?", at).
		Where("id = ?", entryID).
		Where("user_option_index IS NULL").
		Exec(ctx)
	if err != nil {
		return false, wrap("save answer", err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("save answer rows", err, nil)
	}
	return n == 1, nil
}

func (s *Store) IncrementScore(ctx context.Context, sessionID int64) error {
	_, err := s.conn.NewUpdate().Model((*sessionRow)(nil)).
		Set("score = score + 1").
		Where("id = ?", sessionID).
		Where("score < total_questions").
		Exec(ctx)
	return wrap("increment score", err, nil)
}

func (s *Store) CompleteSession(ctx context.Context, sessionID int64, at time.Time) error {
	_, err := s.conn.NewUpdate().Model((*sessionRow)(nil)).
		Set("status = ?", string(domain.SessionCompleted)).
		Set("completed_at = ?", at).
		Where("id = ?", sessionID).
		Where("status = ?", string(domain.SessionInProgress)).
		Exec(ctx)
	return wrap("complete session", err, nil)
}

func (s *Store) CountAnswered(ctx context.Context, sessionID int64) (int, error) {
	n, err := s.conn.NewSelect().Model((*answerRow)(nil)).
		Where("session_id = ?", sessionID).
		Where("user_option_index IS NOT NULL").
		Count(ctx)
	return n, wrap("count answered", err, nil)
}

func (s *Store) GetState(ctx context.Context, identity domain.Identity) (domain.ConversationState, error) {
	var row stateRow
	err := s.conn.NewSelect().Model(&row).Where("identity = ?", string(identity)).Scan(ctx)
	if err != nil {
		return domain.ConversationState{}, wrap("get state", err, domain.ErrStateNotFound)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveState(ctx context.Context, state domain.ConversationState) error {
	if state.State == domain.StateIdle {
		return s.ClearState(ctx, state.Identity)
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = s.now().UTC()
	}
	row := &stateRow{
		Identity:             string(state.Identity),
		State:                string(state.State),
		SessionID:            state.SessionID,
		PendingName:          state.PendingName,
		CurrentQuestionIndex: state.CurrentQuestionIndex,
		UpdatedAt:            updated,
	}
	_, err := s.conn.NewInsert().Model(row).
		On("CONFLICT (identity) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("session_id = EXCLUDED.session_id").
		Set("pending_name = EXCLUDED.pending_name").
		Set("current_question_index = EXCLUDED.current_question_index").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrap("save state", err, nil)
}

// AdvanceQuestion moves a testing row to index. It fails with
// domain.ErrStateNotFound if the row no longer points at sessionID.
func (s *Store) AdvanceQuestion(ctx context.Context, identity domain.Identity, sessionID int64, index int) error {
	res, err := s.conn.NewUpdate().Model((*stateRow)(nil)).
		Set("current_question_index = ?", index).
		Set("updated_at = ?", s.now().UTC()).
		Where("identity = ?", string(identity)).
		Where("state = ?", string(domain.StateTesting)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return wrap("advance question", err, nil)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrStateNotFound
	}
	return nil
}

func (s *Store) ClearState(ctx context.Context, identity domain.Identity) error {
	_, err := s.conn.NewDelete().Model((*stateRow)(nil)).
		Where("identity = ?", string(identity)).
		Exec(ctx)
	return wrap("clear state", err, nil)
}

// LoadBank reads a question bank stored in the question_banks table.
func (s *Store) LoadBank(ctx context.Context, name string) ([]domain.Question, error) {
	var row bankRow
	err := s.conn.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, wrap("load bank", err, fmt.Errorf("%w: %q", domain.ErrBankNotFound, name))
	}
	var questions []domain.Question
	if err := json.Unmarshal([]byte(row.Data), &questions); err != nil {
		return nil, fmt.Errorf("decode bank %q: %w", name, err)
	}
	return questions, nil
}

// SaveBank replaces a stored question bank.
func (s *Store) SaveBank(ctx context.Context, name string, questions []domain.Question) error {
	if err := domain.ValidateQuestions(questions); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode bank %q: %w", name, err)
	}
	row := &bankRow{Name: name, Data: string(data), UpdatedAt: s.now().UTC()}
	_, err = s.conn.NewInsert().Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrap("save bank", err, nil)
}
