package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdentityLockerSerializesSameIdentity(t *testing.T) {
	locker := NewIdentityLocker()
	unlock, err := locker.Lock(context.Background(), "tg:1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "tg:1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second lock to wait, got %v", err)
	}

	other, err := locker.Lock(context.Background(), "tg:2")
	if err != nil {
		t.Fatalf("other identity should not block: %v", err)
	}
	other()

	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "tg:1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()

	if n := locker.Len(); n != 0 {
		t.Fatalf("expected lock table empty, got %d", n)
	}
}
