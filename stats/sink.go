package stats

import "time"

// Sink receives counters and timing samples from the memoization engine.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: emission is best-effort; implementations must not panic or
//   block the calling path.
type Sink interface {
	// Increment adds one to the named counter.
	Increment(name string)

	// Timing records a duration sample under the named timer.
	Timing(name string, d time.Duration)
}

// Noop is a Sink that discards everything.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) Increment(string) {}

func (Noop) Timing(string, time.Duration) {}
