package backend

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the breaker state inside a Resilient backend.
type CircuitState int

const (
	// CircuitClosed means backend operations flow normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means operations are rejected with ErrCircuitOpen.
	CircuitOpen
	// CircuitHalfOpen means a limited number of probe operations are let
	// through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuitConfig configures the breaker embedded in a Resilient backend.
type circuitConfig struct {
	maxFailures   int
	resetTimeout  time.Duration
	probeRequests int
	onStateChange func(from, to CircuitState)
	isFailure     func(err error) bool
}

// circuitBreaker tracks consecutive backend failures and short-circuits
// operations while the store is considered down.
type circuitBreaker struct {
	cfg circuitConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	probes      int
	lastFailure time.Time
}

func newCircuitBreaker(cfg circuitConfig) *circuitBreaker {
	if cfg.maxFailures <= 0 {
		cfg.maxFailures = 5
	}
	if cfg.resetTimeout <= 0 {
		cfg.resetTimeout = 30 * time.Second
	}
	if cfg.probeRequests <= 0 {
		cfg.probeRequests = 1
	}
	if cfg.isFailure == nil {
		cfg.isFailure = func(err error) bool { return err != nil }
	}
	return &circuitBreaker{cfg: cfg, state: CircuitClosed}
}

// execute runs op through the breaker, counting failures and transitioning
// states.
func (cb *circuitBreaker) execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := op(ctx)
	cb.after(err)
	return err
}

// currentState returns the live state, promoting open to half-open once the
// reset timeout has elapsed.
func (cb *circuitBreaker) currentState() CircuitState {
	cb.mu.Lock()
	from, to := cb.advanceLocked()
	state := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return state
}

func (cb *circuitBreaker) reset() {
	cb.mu.Lock()
	old := cb.state
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probes = 0
	cb.mu.Unlock()

	cb.notify(old, CircuitClosed)
}

func (cb *circuitBreaker) before() error {
	cb.mu.Lock()
	from, to := cb.advanceLocked()

	var err error
	switch cb.state {
	case CircuitOpen:
		err = ErrCircuitOpen
	case CircuitHalfOpen:
		if cb.probes >= cb.cfg.probeRequests {
			err = ErrCircuitOpen
		} else {
			cb.probes++
		}
	}
	cb.mu.Unlock()

	cb.notify(from, to)
	return err
}

func (cb *circuitBreaker) after(err error) {
	cb.mu.Lock()

	failed := cb.cfg.isFailure(err)
	old := cb.state

	switch cb.state {
	case CircuitClosed:
		if failed {
			cb.failures++
			cb.lastFailure = time.Now()
			if cb.failures >= cb.cfg.maxFailures {
				cb.state = CircuitOpen
			}
		} else {
			cb.failures = 0
		}
	case CircuitHalfOpen:
		if failed {
			cb.lastFailure = time.Now()
			cb.state = CircuitOpen
		} else {
			cb.state = CircuitClosed
			cb.failures = 0
		}
	}
	state := cb.state
	cb.mu.Unlock()

	cb.notify(old, state)
}

// advanceLocked promotes open to half-open once the reset timeout has
// elapsed. Returns the transition for the caller to notify after releasing
// the lock; equal states mean no transition.
func (cb *circuitBreaker) advanceLocked() (from, to CircuitState) {
	if cb.state == CircuitOpen && time.Since(cb.lastFailure) >= cb.cfg.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.probes = 0
		return CircuitOpen, CircuitHalfOpen
	}
	return cb.state, cb.state
}

// notify fires onStateChange for a real transition. Called without cb.mu
// held so a slow or re-entrant callback cannot stall the breaker.
func (cb *circuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(from, to)
	}
}
