package memoize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jonwraymond/ceych/backend"
	"github.com/jonwraymond/ceych/keys"
)

// Func is the shape of a cacheable computation. Arguments are positional
// and participate in key derivation; computations returning several values
// should return them as a struct or slice in T.
type Func[T any] func(ctx context.Context, args ...any) (T, error)

// callConfig holds per-wrap (and per-invalidate) options.
type callConfig struct {
	ttl    time.Duration
	suffix string
	name   string
}

// Option configures Wrap and Invalidate.
type Option func(*callConfig)

// WithTTL overrides the client's default TTL for this computation.
// Must be greater than zero.
func WithTTL(d time.Duration) Option {
	return func(c *callConfig) { c.ttl = d }
}

// WithSuffix appends a disambiguating suffix during key derivation. Two
// computations with the same identity and arguments but different suffixes
// cache independently.
func WithSuffix(s string) Option {
	return func(c *callConfig) { c.suffix = s }
}

// WithName registers an explicit identity for the computation instead of
// its runtime function name. Required for closures whose keys must stay
// stable across builds.
func WithName(name string) Option {
	return func(c *callConfig) { c.name = name }
}

func applyCallOptions(opts []Option) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Wrapped is a memoized computation. Each invocation looks the key up in
// the backend, computes and stores on miss, and returns the value either
// way. Do is the synchronous form; Go adapts the same path to a callback.
type Wrapped[T any] struct {
	client   *Client
	fn       Func[T]
	identity string
	ttl      time.Duration
	suffix   string
}

// Wrap memoizes fn through the client's backend. The computation's
// identity defaults to its runtime function name; override with WithName.
func Wrap[T any](c *Client, fn Func[T], opts ...Option) (*Wrapped[T], error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if fn == nil {
		return nil, ErrNilFunction
	}

	cfg := applyCallOptions(opts)
	if cfg.ttl < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTTL, cfg.ttl)
	}

	identity := cfg.name
	if identity == "" {
		var err error
		identity, err = keys.Identity(fn)
		if err != nil {
			return nil, err
		}
	}

	ttl := cfg.ttl
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	return &Wrapped[T]{
		client:   c,
		fn:       fn,
		identity: identity,
		ttl:      ttl,
		suffix:   cfg.suffix,
	}, nil
}

// Do invokes the memoized computation.
//
// When the backend is not ready the computation runs directly and nothing
// touches the cache. A key derivation failure surfaces before the backend
// or the computation is reached. A lookup failure is surfaced as a
// LookupError without invoking the computation. A store failure after a
// successful computation is surfaced as a StoreError, except backend write
// timeouts, which are swallowed: the computed value is returned and
// MetricStoreTimeouts incremented.
func (w *Wrapped[T]) Do(ctx context.Context, args ...any) (T, error) {
	var zero T

	if !w.client.backend.IsReady() {
		return w.fn(ctx, args...)
	}

	key, err := keys.Derive(w.identity, args, w.suffix)
	if err != nil {
		return zero, err
	}

	if w.client.flight != nil {
		v, err, _ := w.client.flight.Do(key.String(), func() (any, error) {
			return w.call(ctx, key, args)
		})
		if err != nil {
			return zero, err
		}
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		return zero, nil
	}

	return w.call(ctx, key, args)
}

// Go invokes the memoized computation and delivers the result to cb from a
// new goroutine. It is a thin adapter over Do; both conventions share one
// code path.
func (w *Wrapped[T]) Go(ctx context.Context, cb func(T, error), args ...any) {
	go func() {
		cb(w.Do(ctx, args...))
	}()
}

// call runs the lookup/compute/store sequence for a derived key.
func (w *Wrapped[T]) call(ctx context.Context, key keys.Key, args []any) (T, error) {
	var zero T
	c := w.client

	lctx, span := c.startSpan(ctx, "ceych.lookup", key)
	start := time.Now()
	entry, err := c.backend.Get(lctx, key)
	c.timing(MetricLookupTiming, time.Since(start))
	endSpan(span, err)
	if err != nil {
		c.increment(MetricErrors)
		return zero, &LookupError{Key: key, Err: err}
	}
	if entry != nil {
		c.increment(MetricHits)
		return decode[T](entry)
	}
	c.increment(MetricMisses)

	cctx, span := c.startSpan(ctx, "ceych.compute", key)
	result, err := w.fn(cctx, args...)
	endSpan(span, err)
	if err != nil {
		// Computation errors propagate verbatim; nothing is cached.
		return zero, err
	}

	sctx, span := c.startSpan(ctx, "ceych.store", key)
	start = time.Now()
	err = c.backend.Set(sctx, key, result, w.ttl)
	c.timing(MetricStoreTiming, time.Since(start))
	endSpan(span, err)
	if err != nil {
		c.increment(MetricErrors)
		if errors.Is(err, backend.ErrTimeout) {
			c.increment(MetricStoreTimeouts)
			return result, nil
		}
		return zero, &StoreError{Key: key, Err: err}
	}

	return result, nil
}

// decode converts a backend entry into T. Entries marked Encoded carry the
// msgpack form of the stored value and are always unmarshaled; everything
// else came from an in-process backend and is type-asserted directly. The
// marker keeps a cached []byte or interface value distinguishable from its
// own encoding.
func decode[T any](entry *backend.Entry) (T, error) {
	var zero T
	if entry.Encoded {
		data, ok := entry.Item.([]byte)
		if !ok {
			return zero, fmt.Errorf("memoize: encoded entry holds %T, want []byte", entry.Item)
		}
		var v T
		if err := msgpack.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("memoize: unmarshal cached item: %w", err)
		}
		return v, nil
	}
	if entry.Item == nil {
		return zero, nil
	}
	typed, ok := entry.Item.(T)
	if !ok {
		return zero, fmt.Errorf("memoize: cannot convert cached %T to %T", entry.Item, zero)
	}
	return typed, nil
}
