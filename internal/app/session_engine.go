package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizbot-service/internal/domain"
)

// SessionEngine owns the session lifecycle: creation, answers, scoring, completion.
type SessionEngine struct {
	sessions SessionRepository
	bank     *QuestionBank
	now      func() time.Time
}

func NewSessionEngine(sessions SessionRepository, bank *QuestionBank) *SessionEngine {
	return NewSessionEngineWithClock(sessions, bank, time.Now)
}

// NewSessionEngineWithClock is test-only for deterministic timestamps.
func NewSessionEngineWithClock(sessions SessionRepository, bank *QuestionBank, now func() time.Time) *SessionEngine {
	return &SessionEngine{sessions: sessions, bank: bank, now: now}
}

// atomically runs fn against an engine bound to a single transaction.
func (e *SessionEngine) atomically(ctx context.Context, fn func(tx *SessionEngine) error) error {
	return e.sessions.InTx(ctx, func(repo SessionRepository) error {
		return fn(&SessionEngine{sessions: repo, bank: e.bank, now: e.now})
	})
}

// GenerateTest draws the questions for a new attempt at variant.
func (e *SessionEngine) GenerateTest(ctx context.Context, variant domain.Variant) ([]domain.Question, error) {
	return e.bank.Select(ctx, variant)
}

// CreateSession inserts an in-progress session with score 0.
func (e *SessionEngine) CreateSession(ctx context.Context, identity domain.Identity, name string, variant domain.Variant, total int) (int64, error) {
	session := domain.Session{
		Identity:       identity,
		DisplayName:    name,
		Variant:        variant.Name,
		TotalQuestions: total,
		Status:         domain.SessionInProgress,
		StartedAt:      e.now().UTC(),
	}
	if err := e.sessions.InsertSession(ctx, &session); err != nil {
		return 0, err
	}
	return session.ID, nil
}

// MaterializeQuestions snapshots the drawn questions into the answer log, positions 0..n-1.
func (e *SessionEngine) MaterializeQuestions(ctx context.Context, sessionID int64, questions []domain.Question) error {
	entries := make([]domain.AnswerEntry, len(questions))
	for i, q := range questions {
		entries[i] = domain.AnswerEntry{
			SessionID:    sessionID,
			Position:     i,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: q.CorrectIndex,
		}
	}
	return e.sessions.InsertAnswerEntries(ctx, entries)
}

// StartSession generates a test and creates its session with all answer entries
// in one transaction. If the identity already has an in-progress session, that
// session is returned instead.
func (e *SessionEngine) StartSession(ctx context.Context, identity domain.Identity, name string, variant domain.Variant) (domain.Session, error) {
	if active, ok, err := e.FindActiveSession(ctx, identity); err != nil || ok {
		return active, err
	}

	questions, err := e.GenerateTest(ctx, variant)
	if err != nil {
		return domain.Session{}, err
	}

	var sessionID int64
	err = e.atomically(ctx, func(tx *SessionEngine) error {
		id, err := tx.CreateSession(ctx, identity, name, variant, len(questions))
		if err != nil {
			return err
		}
		sessionID = id
		return tx.MaterializeQuestions(ctx, id, questions)
	})
	if errors.Is(err, domain.ErrActiveSession) {
		// Lost a race with another replica; continue the winner's session.
		active, ok, ferr := e.FindActiveSession(ctx, identity)
		if ferr != nil {
			return domain.Session{}, ferr
		}
		if !ok {
			return domain.Session{}, err
		}
		return active, nil
	}
	if err != nil {
		return domain.Session{}, err
	}
	return e.sessions.SessionByID(ctx, sessionID)
}

// RecordAnswer stores the user's option for a position and scores it. Recording
// an already answered position changes nothing and returns the stored result.
func (e *SessionEngine) RecordAnswer(ctx context.Context, sessionID int64, position, option int) (bool, error) {
	var correct bool
	err := e.atomically(ctx, func(tx *SessionEngine) error {
		entry, err := tx.sessions.AnswerEntry(ctx, sessionID, position)
		if err != nil {
			return err
		}
		if entry.Answered() {
			correct = entry.IsCorrect != nil && *entry.IsCorrect
			return nil
		}
		if option < 0 || option >= len(entry.Options) {
			return fmt.Errorf("%w: option %d of %d", domain.ErrOptionOutOfRange, option, len(entry.Options))
		}

		correct = option == entry.CorrectIndex
		applied, err := tx.sessions.SaveAnswer(ctx, entry.ID, option, correct, e.now().UTC())
		if err != nil {
			return err
		}
		if !applied {
			stored, err := tx.sessions.AnswerEntry(ctx, sessionID, position)
			if err != nil {
				return err
			}
			correct = stored.IsCorrect != nil && *stored.IsCorrect
			return nil
		}
		if correct {
			return tx.sessions.IncrementScore(ctx, sessionID)
		}
		return nil
	})
	return correct, err
}

// CompleteSession marks the session completed and returns its final score.
// Completing an already completed session returns the recorded result.
func (e *SessionEngine) CompleteSession(ctx context.Context, sessionID int64) (domain.FinalScore, error) {
	if err := e.sessions.CompleteSession(ctx, sessionID, e.now().UTC()); err != nil {
		return domain.FinalScore{}, err
	}
	session, err := e.sessions.SessionByID(ctx, sessionID)
	if err != nil {
		return domain.FinalScore{}, err
	}
	if session.Status != domain.SessionCompleted || session.CompletedAt == nil {
		return domain.FinalScore{}, fmt.Errorf("%w: session %d not completed", domain.ErrStorage, sessionID)
	}
	return domain.FinalScore{
		Score:          session.Score,
		TotalQuestions: session.TotalQuestions,
		CompletedAt:    *session.CompletedAt,
	}, nil
}

// FindCompletedSession returns the identity's most recent completed session, if any.
func (e *SessionEngine) FindCompletedSession(ctx context.Context, identity domain.Identity) (domain.Session, bool, error) {
	return found(e.sessions.LatestCompletedSession(ctx, identity))
}

// FindActiveSession returns the identity's in-progress session, if any.
func (e *SessionEngine) FindActiveSession(ctx context.Context, identity domain.Identity) (domain.Session, bool, error) {
	return found(e.sessions.ActiveSession(ctx, identity))
}

func (e *SessionEngine) FindSessionByID(ctx context.Context, id int64) (domain.Session, bool, error) {
	return found(e.sessions.SessionByID(ctx, id))
}

// Question returns the answer entry served at position.
func (e *SessionEngine) Question(ctx context.Context, sessionID int64, position int) (domain.AnswerEntry, error) {
	return e.sessions.AnswerEntry(ctx, sessionID, position)
}

// NextPosition is the first unanswered position. Answers are recorded in order,
// so it equals the number of answered entries.
func (e *SessionEngine) NextPosition(ctx context.Context, sessionID int64) (int, error) {
	return e.sessions.CountAnswered(ctx, sessionID)
}

func found(s domain.Session, err error) (domain.Session, bool, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return s, true, nil
}
