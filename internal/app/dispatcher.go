package app

import (
	"context"
	"errors"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

// EventHandler processes one event for one identity.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// Dispatcher fans inbound events out to a fixed set of workers. Events of one
// identity always land on the same worker, so they are handled in arrival order
// and never concurrently within this process. The Locker extends that across
// processes.
type Dispatcher struct {
	handler EventHandler
	locker  Locker
	dedup   Deduper
	log     *logger.Logger
	shards  []chan domain.Event
}

type DispatcherOption func(*Dispatcher)

// WithDeduper drops events whose DeliveryID was already seen.
func WithDeduper(d Deduper) DispatcherOption {
	return func(disp *Dispatcher) { disp.dedup = d }
}

func NewDispatcher(handler EventHandler, locker Locker, workers int, log *logger.Logger, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		handler: handler,
		locker:  locker,
		log:     log,
		shards:  make([]chan domain.Event, workers),
	}
	for i := range d.shards {
		d.shards[i] = make(chan domain.Event, 64)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit queues ev for its identity's worker. It blocks while that worker's
// queue is full.
func (d *Dispatcher) Submit(ctx context.Context, ev domain.Event) error {
	if ev.Identity == "" {
		return errors.New("event without identity")
	}
	if d.dedup != nil && ev.DeliveryID != "" {
		first, err := d.dedup.FirstDelivery(ctx, ev.DeliveryID)
		if err != nil {
			d.log.Warn("delivery dedup unavailable", "delivery", ev.DeliveryID, "error", err)
		} else if !first {
			d.log.Debug("duplicate delivery dropped", "delivery", ev.DeliveryID)
			return nil
		}
	}

	select {
	case d.shards[d.shardFor(ev.Identity)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range d.shards {
		shard := shard
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-shard:
					d.process(ctx, ev)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, ev domain.Event) {
	unlock, err := d.locker.Lock(ctx, ev.Identity)
	if err != nil {
		d.log.Error("identity lock failed", "identity", ev.Identity, "error", err)
		return
	}
	defer unlock()
	// Handle logs and answers its own failures.
	_ = d.handler.Handle(ctx, ev)
}

func (d *Dispatcher) shardFor(identity domain.Identity) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return int(h.Sum32() % uint32(len(d.shards)))
}
