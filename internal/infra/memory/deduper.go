package memory

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold and sweepInterval bound how often expired ids are dropped.
const (
	sweepThreshold = 1024
	sweepInterval  = time.Minute
)

// Deduper remembers delivery ids for ttl.
type Deduper struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

func NewDeduper(ttl time.Duration) *Deduper {
	return NewDeduperWithClock(ttl, time.Now)
}

// NewDeduperWithClock is test-only for deterministic expiry.
func NewDeduperWithClock(ttl time.Duration, clock func() time.Time) *Deduper {
	return &Deduper{ttl: ttl, clock: clock, seen: make(map[string]time.Time)}
}

func (d *Deduper) FirstDelivery(_ context.Context, key string) (bool, error) {
	now := d.clock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if expires, ok := d.seen[key]; ok && expires.After(now) {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	if len(d.seen) > sweepThreshold && now.Sub(d.lastSweep) >= sweepInterval {
		d.sweepLocked(now)
	}
	return true, nil
}

func (d *Deduper) sweepLocked(now time.Time) {
	d.lastSweep = now
	for key, expires := range d.seen {
		if !expires.After(now) {
			delete(d.seen, key)
		}
	}
}
