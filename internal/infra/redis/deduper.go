package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper marks delivery ids in Redis so a redelivered update is handled once
// across all replicas.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, ttl: ttl}
}

func (d *Deduper) FirstDelivery(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, "quizbot:delivery:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark delivery: %w", err)
	}
	return ok, nil
}
