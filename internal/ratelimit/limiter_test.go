package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock drives the limiter without real sleeping: sleep advances the
// clock instead of waiting.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func installFakeClock(l *Limiter) *fakeClock {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	l.now = func() time.Time { return clock.current }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.slept = append(clock.slept, d)
		clock.current = clock.current.Add(d)
		return nil
	}
	return clock
}

func TestReservedHeadroomForUrgentCallers(t *testing.T) {
	limiter := New(Options{MaxRequests: 10, Reserved: 2, Window: time.Minute})
	installFakeClock(limiter)

	for i := 0; i < 8; i++ {
		if !limiter.TryAcquire(false) {
			t.Fatalf("normal acquire %d refused before reserved boundary", i+1)
		}
	}
	if limiter.TryAcquire(false) {
		t.Fatal("normal caller crossed into reserved headroom")
	}
	// Urgent callers get the 9th and 10th slots.
	if !limiter.TryAcquire(true) || !limiter.TryAcquire(true) {
		t.Fatal("urgent caller refused within reserved headroom")
	}
	if limiter.TryAcquire(true) {
		t.Fatal("urgent caller exceeded the full budget")
	}
}

func TestAcquireBlocksUntilWindowReset(t *testing.T) {
	limiter := New(Options{MaxRequests: 2, Reserved: 0, Window: 10 * time.Second})
	clock := installFakeClock(limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx, false); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Fatalf("in-budget acquires slept: %v", clock.slept)
	}

	// Third acquire must wait out the remainder of the window, then succeed.
	if err := limiter.Acquire(ctx, false); err != nil {
		t.Fatalf("blocked acquire: %v", err)
	}
	if len(clock.slept) != 1 || clock.slept[0] != 10*time.Second {
		t.Fatalf("slept = %v, want one 10s wait", clock.slept)
	}
	if remaining := limiter.Remaining(false); remaining != 1 {
		t.Fatalf("remaining after reset = %d, want 1", remaining)
	}
}

func TestWindowResetIsWallClockNotSliding(t *testing.T) {
	limiter := New(Options{MaxRequests: 1, Reserved: 0, Window: 10 * time.Second})
	clock := installFakeClock(limiter)

	if !limiter.TryAcquire(false) {
		t.Fatal("first acquire refused")
	}
	// Nine seconds in: still the same window.
	clock.current = clock.current.Add(9 * time.Second)
	if limiter.TryAcquire(false) {
		t.Fatal("acquire succeeded mid-window")
	}
	// One more second: the window has rolled.
	clock.current = clock.current.Add(time.Second)
	if !limiter.TryAcquire(false) {
		t.Fatal("acquire refused after window reset")
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	limiter := New(Options{MaxRequests: 1, Reserved: 0, Window: time.Minute})
	installFakeClock(limiter)

	ctx, cancel := context.WithCancel(context.Background())
	if err := limiter.Acquire(ctx, false); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	cancel()
	if err := limiter.Acquire(ctx, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled acquire err = %v, want context.Canceled", err)
	}
}

func TestReservedClampedBelowBudget(t *testing.T) {
	limiter := New(Options{MaxRequests: 3, Reserved: 5, Window: time.Minute})
	installFakeClock(limiter)

	if !limiter.TryAcquire(false) {
		t.Fatal("normal caller should keep at least one slot")
	}
}

func TestPoolUnknownResourceIsUnlimited(t *testing.T) {
	pool := NewPool()
	pool.Register("tmdb", Options{MaxRequests: 1, Window: time.Minute})

	if err := pool.Acquire(context.Background(), "unregistered", false); err != nil {
		t.Fatalf("unregistered resource: %v", err)
	}
	if pool.Get("tmdb") == nil {
		t.Fatal("registered limiter missing")
	}
}
