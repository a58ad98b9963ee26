package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizbot-service/internal/domain"
)

// BankLoader fetches a question bank from a backing store (file, database).
type BankLoader interface {
	LoadBank(ctx context.Context, ref string) ([]domain.Question, error)
}

// BankRepository caches validated banks by source. A zero ttl caches forever.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, source string) ([]domain.Question, error) {
	if questions, ok := r.cached(source); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(source, func() (interface{}, error) {
		if questions, ok := r.cached(source); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadBank(ctx, source)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateQuestions(questions); err != nil {
			return nil, fmt.Errorf("bank %q: %w: %w", source, domain.ErrValidation, err)
		}

		entry := cachedBank{questions: questions}
		if r.ttl > 0 {
			entry.expiresAt = r.clock().Add(r.ttlWithJitter())
		}
		r.mu.Lock()
		r.cache[source] = entry
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *BankRepository) cached(source string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[source]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves banks from a map (useful for tests/demos).
type StaticBankLoader struct {
	banks map[string][]domain.Question
}

func NewStaticBankLoader(banks map[string][]domain.Question) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, ref string) ([]domain.Question, error) {
	if questions, ok := l.banks[ref]; ok {
		return questions, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrBankNotFound, ref)
}

// RoutingLoader dispatches "scheme:ref" sources to the loader registered for scheme.
type RoutingLoader struct {
	mu      sync.RWMutex
	loaders map[string]BankLoader
}

func NewRoutingLoader() *RoutingLoader {
	return &RoutingLoader{loaders: make(map[string]BankLoader)}
}

func (l *RoutingLoader) Register(scheme string, loader BankLoader) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaders[scheme] = loader
}

func (l *RoutingLoader) LoadBank(ctx context.Context, source string) ([]domain.Question, error) {
	scheme, ref, ok := strings.Cut(source, ":")
	if !ok || ref == "" {
		return nil, fmt.Errorf("bank source %q: want scheme:ref", source)
	}
	l.mu.RLock()
	loader, ok := l.loaders[scheme]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bank source %q: no loader for %q", source, scheme)
	}
	return loader.LoadBank(ctx, ref)
}
