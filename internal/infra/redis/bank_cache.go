package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizbot-service/internal/domain"
)

// BankLoader fetches a question bank from its backing store.
type BankLoader interface {
	LoadBank(ctx context.Context, source string) ([]domain.Question, error)
}

// BankCache shares loaded banks between replicas. Banks are stored as JSON:
// SET quizbot:bank:{source} [...questions]
// It is itself a BankLoader, so it slots in behind the in-process cache.
type BankCache struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBankCache(client *redis.Client, loader BankLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) LoadBank(ctx context.Context, source string) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx, source); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(source, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, source); ok {
			return questions, nil
		}
		questions, err := c.loader.LoadBank(ctx, source)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(questions); err == nil {
			// best-effort; the loader stays authoritative
			_ = c.client.Set(ctx, bankKey(source), raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *BankCache) cached(ctx context.Context, source string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, bankKey(source)).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func bankKey(source string) string {
	return "quizbot:bank:" + source
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
