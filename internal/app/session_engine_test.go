package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/memory"
)

var basicVariant = domain.Variant{Name: "basic", Source: "static:basic", QuestionsPerTest: 3}

func TestStartSessionMaterializesDistinctQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.engine.StartSession(ctx, "tg:1", "Alice", basicVariant)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status != domain.SessionInProgress || session.TotalQuestions != 3 || session.Score != 0 {
		t.Fatalf("unexpected session %+v", session)
	}

	seen := map[string]bool{}
	for pos := 0; pos < 3; pos++ {
		entry, err := f.engine.Question(ctx, session.ID, pos)
		if err != nil {
			t.Fatalf("question %d: %v", pos, err)
		}
		if seen[entry.QuestionID] {
			t.Fatalf("question %s served twice", entry.QuestionID)
		}
		seen[entry.QuestionID] = true
		if entry.Answered() || len(entry.Options) != 3 {
			t.Fatalf("unexpected entry %+v", entry)
		}
	}
	if _, err := f.engine.Question(ctx, session.ID, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found past the last position, got %v", err)
	}

	again, err := f.engine.StartSession(ctx, "tg:1", "Alice", basicVariant)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.ID != session.ID {
		t.Fatalf("expected the active session %d to be returned, got %d", session.ID, again.ID)
	}
}

func TestCreateSessionRejectsSecondActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.engine.CreateSession(ctx, "tg:1", "Alice", basicVariant, 3); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.CreateSession(ctx, "tg:1", "Alice", basicVariant, 3); !errors.Is(err, domain.ErrActiveSession) {
		t.Fatalf("expected ErrActiveSession, got %v", err)
	}
	if _, err := f.engine.CreateSession(ctx, "tg:2", "Bob", basicVariant, 3); err != nil {
		t.Fatalf("other identity: %v", err)
	}
}

func TestRecordAnswerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.engine.StartSession(ctx, "tg:1", "Alice", basicVariant)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	correct, err := f.engine.RecordAnswer(ctx, session.ID, 0, 1)
	if err != nil || !correct {
		t.Fatalf("first answer: correct=%v err=%v", correct, err)
	}
	// A different option for the same position returns the stored result.
	correct, err = f.engine.RecordAnswer(ctx, session.ID, 0, 0)
	if err != nil || !correct {
		t.Fatalf("replayed answer: correct=%v err=%v", correct, err)
	}

	correct, err = f.engine.RecordAnswer(ctx, session.ID, 1, 2)
	if err != nil || correct {
		t.Fatalf("wrong answer: correct=%v err=%v", correct, err)
	}

	stored, _, err := f.engine.FindSessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if stored.Score != 1 {
		t.Fatalf("expected score 1, got %d", stored.Score)
	}
	next, err := f.engine.NextPosition(ctx, session.ID)
	if err != nil || next != 2 {
		t.Fatalf("next position: %d err=%v", next, err)
	}

	entry, err := f.engine.Question(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.UserOptionIndex == nil || *entry.UserOptionIndex != 1 || entry.AnsweredAt == nil {
		t.Fatalf("first answer not kept: %+v", entry)
	}
}

func TestRecordAnswerValidatesOption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.engine.StartSession(ctx, "tg:1", "Alice", basicVariant)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, option := range []int{-1, 3} {
		if _, err := f.engine.RecordAnswer(ctx, session.ID, 0, option); !errors.Is(err, domain.ErrOptionOutOfRange) {
			t.Fatalf("option %d: expected ErrOptionOutOfRange, got %v", option, err)
		}
	}
	if _, err := f.engine.RecordAnswer(ctx, session.ID, 9, 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	next, _ := f.engine.NextPosition(ctx, session.ID)
	if next != 0 {
		t.Fatalf("rejected answers must not be recorded, next=%d", next)
	}
}

func TestCompleteSessionTwiceKeepsFirstResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	clock := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	engine := app.NewSessionEngineWithClock(f.store, app.NewQuestionBank(memory.NewBankRepository(
		memory.NewStaticBankLoader(map[string][]domain.Question{"static:basic": bank(5)}), 0)),
		func() time.Time { return clock })

	session, err := engine.StartSession(ctx, "tg:1", "Alice", basicVariant)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for pos := 0; pos < 3; pos++ {
		if _, err := engine.RecordAnswer(ctx, session.ID, pos, 1); err != nil {
			t.Fatalf("answer %d: %v", pos, err)
		}
	}

	first, err := engine.CompleteSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first.Score != 3 || first.TotalQuestions != 3 || first.Percent() != 100 {
		t.Fatalf("unexpected final score %+v", first)
	}

	clock = clock.Add(time.Hour)
	second, err := engine.CompleteSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if !second.CompletedAt.Equal(first.CompletedAt) || second.Score != first.Score {
		t.Fatalf("second completion changed the result: %+v vs %+v", second, first)
	}

	if _, ok, _ := engine.FindActiveSession(ctx, "tg:1"); ok {
		t.Fatalf("completed session still active")
	}
	done, ok, err := engine.FindCompletedSession(ctx, "tg:1")
	if err != nil || !ok || done.ID != session.ID {
		t.Fatalf("completed session lookup: %+v ok=%v err=%v", done, ok, err)
	}
}

func TestStartSessionInsufficientBank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	variant := domain.Variant{Name: "big", Source: "static:small", QuestionsPerTest: 5}

	if _, err := f.engine.StartSession(ctx, "tg:1", "Alice", variant); !errors.Is(err, domain.ErrInsufficientBank) {
		t.Fatalf("expected ErrInsufficientBank, got %v", err)
	}
	if _, ok, _ := f.engine.FindActiveSession(ctx, "tg:1"); ok {
		t.Fatalf("no session should exist after a failed start")
	}
}
