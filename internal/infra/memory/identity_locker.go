package memory

import (
	"context"
	"sync"

	"quizbot-service/internal/domain"
)

// IdentityLocker is an in-process app.Locker: one mutex per identity, dropped
// when nobody holds or waits for it.
type IdentityLocker struct {
	mu    sync.Mutex
	locks map[domain.Identity]*identityLock
}

type identityLock struct {
	ch   chan struct{}
	refs int
}

func NewIdentityLocker() *IdentityLocker {
	return &IdentityLocker{locks: make(map[domain.Identity]*identityLock)}
}

func (l *IdentityLocker) Lock(ctx context.Context, identity domain.Identity) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[identity]
	if !ok {
		lock = &identityLock{ch: make(chan struct{}, 1)}
		l.locks[identity] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(identity, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.ch
			l.release(identity, lock)
		})
	}, nil
}

func (l *IdentityLocker) release(identity domain.Identity, lock *identityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, identity)
	}
}

// Len reports how many identities currently have a lock entry.
func (l *IdentityLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
