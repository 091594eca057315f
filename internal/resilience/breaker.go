// Package resilience guards the speech providers behind the narration
// endpoint: a three-state circuit breaker per provider and an ordered
// failover across them.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker]. Zero values take the
// defaults noted per field.
type BreakerConfig struct {
	// Name labels log lines and state-change notifications.
	Name string `yaml:"-"`

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMax is the number of successful probes needed to close again.
	// Default: 3.
	HalfOpenMax int `yaml:"half_open_max"`
}

// Breaker is a closed → open → half-open circuit breaker.
//
// Calls that fail only because their context was cancelled or timed out are
// not counted: a user closing the detail view must not trip the provider.
type Breaker struct {
	cfg      BreakerConfig
	now      func() time.Time
	onChange func(name string, from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	successes int
}

// BreakerOption configures a [Breaker].
type BreakerOption func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithStateChange registers fn to be called on every transition. fn runs
// with the breaker's lock held and must not call back into it.
func WithStateChange(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	b := &Breaker{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the configured label.
func (b *Breaker) Name() string { return b.cfg.Name }

// Execute runs fn if the breaker allows it.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	probing := b.state == StateHalfOpen
	if probing {
		if b.probes >= b.cfg.HalfOpenMax {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probes++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.success(probing)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Cancelled by the caller; release the probe slot and move on.
		if probing && b.state == StateHalfOpen {
			b.probes--
		}
	default:
		b.failure(probing)
	}
	return err
}

func (b *Breaker) failure(probing bool) {
	if probing || b.state == StateHalfOpen {
		b.open()
		return
	}
	b.failures++
	if b.failures >= b.cfg.MaxFailures {
		b.open()
	}
}

func (b *Breaker) success(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	if b.state != StateHalfOpen {
		return
	}
	b.successes++
	if b.successes >= b.cfg.HalfOpenMax {
		b.failures = 0
		b.transition(StateClosed)
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.transition(StateOpen)
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.probes = 0
	b.successes = 0
	if from == to {
		return
	}
	slog.Info("circuit breaker state change", "name", b.cfg.Name, "from", from.String(), "to", to.String())
	if b.onChange != nil {
		b.onChange(b.cfg.Name, from, to)
	}
}

// State returns the effective state. An open breaker whose timeout has
// elapsed reports half-open; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.transition(StateClosed)
}
