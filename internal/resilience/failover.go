package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Failover] failed or was
// skipped because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover tries members of the same provider type in registration order,
// each behind its own [Breaker].
type Failover[T any] struct {
	cfg     BreakerConfig
	opts    []BreakerOption
	members []member[T]
}

// NewFailover creates an empty failover. cfg and opts apply to the breaker
// created for every member.
func NewFailover[T any](cfg BreakerConfig, opts ...BreakerOption) *Failover[T] {
	return &Failover[T]{cfg: cfg, opts: opts}
}

// Add registers a member. Members must be added before the failover is used
// concurrently.
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg
	cfg.Name = name
	f.members = append(f.members, member[T]{name: name, value: value, breaker: NewBreaker(cfg, f.opts...)})
}

// Len returns the number of members.
func (f *Failover[T]) Len() int { return len(f.members) }

// Names returns member names in order.
func (f *Failover[T]) Names() []string {
	out := make([]string, len(f.members))
	for i, m := range f.members {
		out[i] = m.name
	}
	return out
}

// States returns each member's breaker state keyed by name.
func (f *Failover[T]) States() map[string]State {
	out := make(map[string]State, len(f.members))
	for _, m := range f.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Available reports whether at least one member would accept a call.
func (f *Failover[T]) Available() bool {
	for _, m := range f.members {
		if m.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Do runs fn against each member until one succeeds and returns its result
// together with the name of the member that produced it. Cancellation of
// ctx stops the walk immediately.
func Do[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var zero R
	if len(f.members) == 0 {
		return zero, "", fmt.Errorf("%w: no providers configured", ErrAllFailed)
	}
	var lastErr error
	for i := range f.members {
		m := &f.members[i]
		var result R
		err := m.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			return result, m.name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, m.name, ctxErr
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "err", err)
		}
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
