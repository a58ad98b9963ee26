package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"quizbot-service/internal/app"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/memory"
)

func newBank(seed int64) *app.QuestionBank {
	loader := memory.NewStaticBankLoader(map[string][]domain.Question{"static:basic": bank(10)})
	return app.NewQuestionBankWithRand(memory.NewBankRepository(loader, 0), rand.New(rand.NewSource(seed)))
}

func TestSelectReturnsDistinctQuestions(t *testing.T) {
	ctx := context.Background()
	qb := newBank(42)
	variant := domain.Variant{Name: "basic", Source: "static:basic", QuestionsPerTest: 10}

	for round := 0; round < 20; round++ {
		questions, err := qb.Select(ctx, variant)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if len(questions) != 10 {
			t.Fatalf("expected 10 questions, got %d", len(questions))
		}
		seen := map[string]bool{}
		for _, q := range questions {
			if seen[q.ID] {
				t.Fatalf("round %d: duplicate %s", round, q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestSelectVariesOrder(t *testing.T) {
	ctx := context.Background()
	qb := newBank(7)
	variant := domain.Variant{Name: "basic", Source: "static:basic", QuestionsPerTest: 4}

	first, err := qb.Select(ctx, variant)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 50; i++ {
		next, err := qb.Select(ctx, variant)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		for j := range next {
			if next[j].ID != first[j].ID {
				return
			}
		}
	}
	t.Fatalf("51 draws produced the same selection")
}

func TestSelectInsufficientBank(t *testing.T) {
	ctx := context.Background()
	qb := newBank(1)

	for _, n := range []int{0, 11} {
		variant := domain.Variant{Name: "basic", Source: "static:basic", QuestionsPerTest: n}
		if _, err := qb.Select(ctx, variant); !errors.Is(err, domain.ErrInsufficientBank) {
			t.Fatalf("n=%d: expected ErrInsufficientBank, got %v", n, err)
		}
	}
	variant := domain.Variant{Name: "missing", Source: "static:missing", QuestionsPerTest: 1}
	if _, err := qb.Select(ctx, variant); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestPreloadChecksEveryVariant(t *testing.T) {
	ctx := context.Background()
	qb := newBank(1)

	ok, err := app.NewVariants([]domain.Variant{{Name: "basic", Source: "static:basic", QuestionsPerTest: 10}})
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if err := qb.Preload(ctx, ok); err != nil {
		t.Fatalf("preload: %v", err)
	}

	tooMany, _ := app.NewVariants([]domain.Variant{
		{Name: "basic", Source: "static:basic", QuestionsPerTest: 3},
		{Name: "huge", Source: "static:basic", QuestionsPerTest: 30},
	})
	if err := qb.Preload(ctx, tooMany); !errors.Is(err, domain.ErrInsufficientBank) {
		t.Fatalf("expected ErrInsufficientBank, got %v", err)
	}
}

func TestVariants(t *testing.T) {
	if _, err := app.NewVariants(nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty list, got %v", err)
	}
	if _, err := app.NewVariants([]domain.Variant{{Name: "a"}, {Name: "a"}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for duplicates, got %v", err)
	}

	v, err := app.NewVariants([]domain.Variant{{Name: "a", Title: "First"}, {Name: "b"}})
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if _, ok := v.Single(); ok {
		t.Fatalf("two variants are not single")
	}
	if got, ok := v.Lookup("b"); !ok || got.Label() != "b" {
		t.Fatalf("lookup b: %+v %v", got, ok)
	}
	if _, ok := v.Lookup("c"); ok {
		t.Fatalf("lookup of unknown variant succeeded")
	}
	all := v.All()
	if len(all) != 2 || all[0].Label() != "First" {
		t.Fatalf("unexpected order %+v", all)
	}
}

func TestSelectIsRoughlyUniform(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewStaticBankLoader(map[string][]domain.Question{"static:five": bank(5)})
	qb := app.NewQuestionBankWithRand(memory.NewBankRepository(loader, 0), rand.New(rand.NewSource(99)))
	variant := domain.Variant{Name: "five", Source: "static:five", QuestionsPerTest: 3}

	const draws = 3000
	counts := map[string]int{}
	firsts := map[string]int{}
	for i := 0; i < draws; i++ {
		questions, err := qb.Select(ctx, variant)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		seen := map[string]bool{}
		for _, q := range questions {
			if seen[q.ID] {
				t.Fatalf("draw %d: duplicate %s", i, q.ID)
			}
			seen[q.ID] = true
			counts[q.ID]++
		}
		firsts[questions[0].ID]++
	}

	if len(counts) != 5 {
		t.Fatalf("expected all 5 questions to appear, got %v", counts)
	}
	check := func(what string, got map[string]int, expected float64) {
		t.Helper()
		for id, n := range got {
			if float64(n) < expected*0.85 || float64(n) > expected*1.15 {
				t.Fatalf("%s: %s drawn %d times, expected about %.0f (%v)", what, id, n, expected, got)
			}
		}
	}
	check("membership", counts, draws*3/5.0)
	check("first position", firsts, draws/5.0)
}
