package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned when a call is rejected without being attempted.
// Rejections are transient: the job retries with backoff and usually lands
// after the cooldown.
var ErrOpen = errors.New("circuit breaker open")

// Options configures one breaker.
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
}

// Breaker guards calls to one named external resource.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool

	now func() time.Time
}

// New builds a breaker for a named resource.
func New(name string, opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	return &Breaker{
		name:      name,
		threshold: opts.FailureThreshold,
		cooldown:  opts.Cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Do runs fn under the breaker. When the circuit is open and the cooldown
// has not elapsed, fn is not invoked and ErrOpen is returned. After the
// cooldown exactly one caller runs a trial: success closes the circuit,
// failure re-opens it for another full cooldown.
func (b *Breaker) Do(fn func() error) error {
	return b.DoClassified(fn, nil)
}

// DoClassified runs fn under the breaker, consulting counts to decide
// whether a non-nil error reflects on the resource's health. Errors that do
// not count, such as an authoritative "not found", leave the failure streak
// and state untouched. A nil counts treats every error as a failure.
func (b *Breaker) DoClassified(fn func() error, counts func(error) bool) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err, counts)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return fmt.Errorf("%w: %s retrying after %s", ErrOpen, b.name, b.cooldown)
		}
		b.state = StateHalfOpen
		b.trialing = true
		return nil
	case StateHalfOpen:
		if b.trialing {
			return fmt.Errorf("%w: %s trial in flight", ErrOpen, b.name)
		}
		b.trialing = true
		return nil
	}
	return nil
}

func (b *Breaker) record(err error, counts func(error) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		b.trialing = false
		return
	}
	if counts != nil && !counts(err) {
		// Not a resource fault. Release the trial slot without moving the
		// state machine.
		b.trialing = false
		return
	}

	switch b.state {
	case StateHalfOpen:
		// Trial failed: back to a full cooldown.
		b.state = StateOpen
		b.openedAt = b.now()
		b.failures = b.threshold
		b.trialing = false
	default:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

// State reports the breaker's current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Name returns the guarded resource's name.
func (b *Breaker) Name() string {
	return b.name
}

// Registry holds one breaker per named resource.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	breakers map[string]*Breaker
}

// NewRegistry builds a registry whose breakers share the given options.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for a resource, creating it on first use.
func (r *Registry) For(resource string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[resource]; ok {
		return b
	}
	b := New(resource, r.opts)
	r.breakers[resource] = b
	return b
}

// States snapshots every known breaker's state for health reporting.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}
