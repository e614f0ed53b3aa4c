package backend

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/ceych/keys"
	"github.com/jonwraymond/ceych/stats"
)

// ResilientConfig configures the Resilient decorator.
type ResilientConfig struct {
	// Timeout is the maximum duration for a single backend operation.
	// Default: DefaultQueryTimeout.
	Timeout time.Duration

	// MaxFailures is the number of consecutive failures before the
	// circuit opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing
	// recovery. Default: 30 seconds.
	ResetTimeout time.Duration

	// ProbeRequests is the number of operations allowed through while
	// half-open. Default: 1.
	ProbeRequests int

	// Logger, when set, records circuit state changes. The engine itself
	// never logs; degradation reporting belongs to the backend layer.
	Logger stats.Logger
}

// Resilient decorates another Backend with a per-operation timeout and a
// circuit breaker. While the circuit is open the decorator reports
// not-ready, so the engine falls back to computing without the cache
// instead of failing every call with ErrCircuitOpen.
type Resilient struct {
	inner   Backend
	timeout time.Duration
	breaker *circuitBreaker
}

var _ Backend = (*Resilient)(nil)

// NewResilient wraps inner with timeout and circuit breaker protection.
func NewResilient(inner Backend, cfg ResilientConfig) *Resilient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultQueryTimeout
	}

	r := &Resilient{
		inner:   inner,
		timeout: cfg.Timeout,
	}

	logger := cfg.Logger
	r.breaker = newCircuitBreaker(circuitConfig{
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		probeRequests: cfg.ProbeRequests,
		onStateChange: func(from, to CircuitState) {
			if logger != nil {
				logger.Warn(context.Background(), "cache backend circuit state changed",
					stats.Field{Key: "from", Value: from.String()},
					stats.Field{Key: "to", Value: to.String()},
				)
			}
		},
	})
	return r
}

// IsReady reports whether the inner backend is ready and the circuit is
// not open.
func (r *Resilient) IsReady() bool {
	return r.inner.IsReady() && r.breaker.currentState() != CircuitOpen
}

// Start starts the inner backend and resets the circuit.
func (r *Resilient) Start(ctx context.Context) error {
	if err := r.inner.Start(ctx); err != nil {
		return err
	}
	r.breaker.reset()
	return nil
}

func (r *Resilient) Stop(ctx context.Context) error {
	return r.inner.Stop(ctx)
}

func (r *Resilient) Get(ctx context.Context, key keys.Key) (*Entry, error) {
	var entry *Entry
	err := r.execute(ctx, func(ctx context.Context) error {
		var err error
		entry, err = r.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Resilient) Set(ctx context.Context, key keys.Key, item any, ttl time.Duration) error {
	return r.execute(ctx, func(ctx context.Context) error {
		return r.inner.Set(ctx, key, item, ttl)
	})
}

func (r *Resilient) Drop(ctx context.Context, key keys.Key) error {
	return r.execute(ctx, func(ctx context.Context) error {
		return r.inner.Drop(ctx, key)
	})
}

// State exposes the current circuit state for diagnostics.
func (r *Resilient) State() CircuitState {
	return r.breaker.currentState()
}

func (r *Resilient) execute(ctx context.Context, op func(context.Context) error) error {
	return r.breaker.execute(ctx, func(ctx context.Context) error {
		return r.withTimeout(ctx, op)
	})
}

func (r *Resilient) withTimeout(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		// An op that honors ctx reports the deadline itself; normalize
		// so callers see one timeout error either way.
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
