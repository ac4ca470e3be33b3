package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter grants at most MaxRequests acquisitions per fixed wall-clock
// window. Normal callers see MaxRequests-Reserved; urgent callers may use
// the full budget. Exhausted callers block until the window resets.
//
// Accepted tradeoff: sustained urgent traffic can starve normal callers
// indefinitely. Keep Reserved small relative to MaxRequests.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	reserved    int
	window      time.Duration
	windowStart time.Time
	used        int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures one limiter.
type Options struct {
	MaxRequests int
	Reserved    int
	Window      time.Duration
}

// New builds a limiter. Reserved is clamped below MaxRequests so normal
// callers always have at least one slot.
func New(opts Options) *Limiter {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = 1
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.Reserved < 0 {
		opts.Reserved = 0
	}
	if opts.Reserved >= opts.MaxRequests {
		opts.Reserved = opts.MaxRequests - 1
	}
	return &Limiter{
		maxRequests: opts.MaxRequests,
		reserved:    opts.Reserved,
		window:      opts.Window,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire blocks until a slot is available for the caller's class or the
// context is done. Urgent callers may dip into the reserved headroom.
func (l *Limiter) Acquire(ctx context.Context, urgent bool) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.rollWindowLocked(now)

		budget := l.maxRequests
		if !urgent {
			budget -= l.reserved
		}
		if l.used < budget {
			l.used++
			l.mu.Unlock()
			return nil
		}
		wait := l.windowStart.Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
}

// TryAcquire is Acquire without blocking; it reports whether a slot was
// granted.
func (l *Limiter) TryAcquire(urgent bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollWindowLocked(l.now())

	budget := l.maxRequests
	if !urgent {
		budget -= l.reserved
	}
	if l.used < budget {
		l.used++
		return true
	}
	return false
}

// Remaining reports the slots left for the given caller class in the
// current window.
func (l *Limiter) Remaining(urgent bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollWindowLocked(l.now())

	budget := l.maxRequests
	if !urgent {
		budget -= l.reserved
	}
	if remaining := budget - l.used; remaining > 0 {
		return remaining
	}
	return 0
}

func (l *Limiter) rollWindowLocked(now time.Time) {
	if l.windowStart.IsZero() || !now.Before(l.windowStart.Add(l.window)) {
		l.windowStart = now
		l.used = 0
	}
}

// Pool holds one limiter per named external resource.
type Pool struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewPool builds an empty pool.
func NewPool() *Pool {
	return &Pool{limiters: make(map[string]*Limiter)}
}

// Register installs a limiter for a resource, replacing any previous one.
func (p *Pool) Register(resource string, opts Options) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	limiter := New(opts)
	p.limiters[resource] = limiter
	return limiter
}

// Get returns the limiter for a resource, or nil when none is registered.
// Callers treat a nil limiter as unlimited.
func (p *Pool) Get(resource string) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiters[resource]
}

// Acquire acquires from the resource's limiter when one is registered;
// unknown resources are unlimited.
func (p *Pool) Acquire(ctx context.Context, resource string, urgent bool) error {
	limiter := p.Get(resource)
	if limiter == nil {
		return nil
	}
	return limiter.Acquire(ctx, urgent)
}
