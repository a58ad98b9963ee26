package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizbot-service/internal/domain"
)

// QuestionBank draws random distinct questions from a variant's bank.
type QuestionBank struct {
	banks BankRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(banks BankRepository) *QuestionBank {
	return NewQuestionBankWithRand(banks, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionBankWithRand is test-only for deterministic draws.
func NewQuestionBankWithRand(banks BankRepository, rnd *rand.Rand) *QuestionBank {
	return &QuestionBank{banks: banks, rnd: rnd}
}

// Select returns variant.QuestionsPerTest distinct questions in random order.
// The bank is not mutated.
func (b *QuestionBank) Select(ctx context.Context, variant domain.Variant) ([]domain.Question, error) {
	questions, err := b.banks.GetBank(ctx, variant.Source)
	if err != nil {
		return nil, err
	}
	n := variant.QuestionsPerTest
	if n <= 0 || len(questions) < n {
		return nil, fmt.Errorf("%w: variant %q needs %d questions, bank has %d",
			domain.ErrInsufficientBank, variant.Name, n, len(questions))
	}

	order := b.permutation(len(questions))
	selected := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		selected[i] = questions[order[i]]
	}
	return selected, nil
}

// permutation is a Fisher-Yates shuffle of [0, n).
func (b *QuestionBank) permutation(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := b.rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Variants is the ordered set of configured test variants.
type Variants struct {
	list   []domain.Variant
	byName map[string]domain.Variant
}

func NewVariants(list []domain.Variant) (*Variants, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: at least one variant required", domain.ErrValidation)
	}
	v := &Variants{list: append([]domain.Variant(nil), list...), byName: make(map[string]domain.Variant, len(list))}
	for _, variant := range list {
		if _, dup := v.byName[variant.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate variant %q", domain.ErrValidation, variant.Name)
		}
		v.byName[variant.Name] = variant
	}
	return v, nil
}

func (v *Variants) All() []domain.Variant {
	return append([]domain.Variant(nil), v.list...)
}

func (v *Variants) Lookup(name string) (domain.Variant, bool) {
	variant, ok := v.byName[name]
	return variant, ok
}

// Single returns the only variant when exactly one is configured.
func (v *Variants) Single() (domain.Variant, bool) {
	if len(v.list) != 1 {
		return domain.Variant{}, false
	}
	return v.list[0], true
}

// Preload loads every variant's bank once and checks it can serve a full test.
func (b *QuestionBank) Preload(ctx context.Context, variants *Variants) error {
	for _, variant := range variants.All() {
		questions, err := b.banks.GetBank(ctx, variant.Source)
		if err != nil {
			return fmt.Errorf("variant %q: %w", variant.Name, err)
		}
		if len(questions) < variant.QuestionsPerTest {
			return fmt.Errorf("%w: variant %q needs %d questions, bank has %d",
				domain.ErrInsufficientBank, variant.Name, variant.QuestionsPerTest, len(questions))
		}
	}
	return nil
}
