package backend

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/ceych/keys"
)

// Sentinel errors for backend operations.
var (
	// ErrNotReady is returned when an operation is attempted against a
	// backend that has not been started or has been stopped.
	ErrNotReady = errors.New("backend: backend is not ready")

	// ErrTimeout is returned when a backend operation exceeds its
	// configured deadline. Callers may treat a write timeout as a
	// degradation rather than a failure.
	ErrTimeout = errors.New("backend: operation timed out")

	// ErrCircuitOpen is returned by the resilient decorator while its
	// circuit breaker is blocking requests.
	ErrCircuitOpen = errors.New("backend: circuit breaker is open")
)

// Entry is the shape stored under a key. The wrapper distinguishes a cached
// nil (or zero) item from "no entry": Get returns a non-nil *Entry whenever
// the key exists, regardless of the item's value.
type Entry struct {
	Item any

	// Encoded marks Item as the serialized []byte form of the stored
	// value. Backends that keep values out of process set it so consumers
	// know to decode instead of type-asserting.
	Encoded bool
}

// Backend is the capability set consumed by the memoization engine.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: operations must honor cancellation/deadlines.
// - Get returns (nil, nil) on miss; a present key yields a non-nil Entry.
// - Drop is idempotent: dropping a missing key is not an error.
type Backend interface {
	// IsReady reports whether the backend will serve operations. The
	// engine bypasses caching entirely while this is false.
	IsReady() bool

	// Start makes the backend ready. Calling Start on a ready backend
	// is a no-op.
	Start(ctx context.Context) error

	// Stop makes the backend not-ready and releases its resources.
	Stop(ctx context.Context) error

	// Get retrieves the entry stored under key, or (nil, nil) on miss.
	Get(ctx context.Context, key keys.Key) (*Entry, error)

	// Set stores item under key with the given TTL. A non-positive ttl
	// is a no-op: every stored entry carries an expiry.
	Set(ctx context.Context, key keys.Key, item any, ttl time.Duration) error

	// Drop removes the entry under key, if any.
	Drop(ctx context.Context, key keys.Key) error
}

// DefaultQueryTimeout is the per-operation timeout for backends that
// perform I/O. Prevents indefinite hangs on slow or unresponsive storage.
const DefaultQueryTimeout = 5 * time.Second

// config holds the resolved configuration shared by backend implementations.
type config struct {
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
}

// Option configures a backend implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup
// in the Memory backend. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets a key prefix for namespacing entries in the Redis
// backend. Defaults to empty (the key's own segment is the only namespace).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}
