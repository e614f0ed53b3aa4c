package memoize

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/ceych/backend"
	"github.com/jonwraymond/ceych/keys"
	"github.com/jonwraymond/ceych/stats"
)

// DefaultTTL is used when Config.DefaultTTL is zero.
const DefaultTTL = 30 * time.Second

// Metric names emitted through the stats sink.
const (
	MetricHits          = "ceych.hits"
	MetricMisses        = "ceych.misses"
	MetricErrors        = "ceych.errors"
	MetricStoreTimeouts = "ceych.store_timeouts"
	MetricLookupTiming  = "ceych.lookup_ms"
	MetricStoreTiming   = "ceych.store_ms"
)

// Config configures a Client.
type Config struct {
	// Backend is the cache store. Required.
	Backend backend.Backend

	// DefaultTTL applies to wrapped computations that do not override it.
	// Zero means DefaultTTL (30s); negative is a configuration error.
	DefaultTTL time.Duration

	// Stats receives hit/miss/error counters and lookup/store timings.
	// Nil disables emission.
	Stats stats.Sink

	// Tracer, when set, wraps lookup, compute, and store in spans.
	Tracer trace.Tracer

	// Coalesce shares one in-flight compute+store between concurrent
	// callers that miss on the same key. Off by default: without it,
	// racing identical calls each compute and each write, last write
	// wins.
	Coalesce bool
}

// Client owns the backend handle and per-call policy shared by all
// computations wrapped through it.
type Client struct {
	backend    backend.Backend
	defaultTTL time.Duration
	stats      stats.Sink
	tracer     trace.Tracer
	flight     *singleflight.Group
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Backend == nil {
		return nil, ErrNilBackend
	}
	if cfg.DefaultTTL < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTTL, cfg.DefaultTTL)
	}

	ttl := cfg.DefaultTTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	sink := cfg.Stats
	if sink == nil {
		sink = stats.Noop{}
	}

	c := &Client{
		backend:    cfg.Backend,
		defaultTTL: ttl,
		stats:      sink,
		tracer:     cfg.Tracer,
	}
	if cfg.Coalesce {
		c.flight = &singleflight.Group{}
	}
	return c, nil
}

// EnableCache starts the backend if it is not already ready. Idempotent.
func (c *Client) EnableCache(ctx context.Context) error {
	if c.backend.IsReady() {
		return nil
	}
	return c.backend.Start(ctx)
}

// DisableCache stops the backend. Wrapped computations keep working: a
// not-ready backend makes every call invoke the computation directly.
func (c *Client) DisableCache(ctx context.Context) error {
	return c.backend.Stop(ctx)
}

// Invalidate evicts the entry that a wrapped call with the same original
// computation, arguments, and suffix would have stored. It takes the
// unwrapped computation because key derivation depends on its identity.
// Dropping a missing key is not an error.
func (c *Client) Invalidate(ctx context.Context, fn any, args []any, opts ...Option) error {
	cfg := applyCallOptions(opts)

	identity := cfg.name
	if identity == "" {
		var err error
		identity, err = keys.Identity(fn)
		if err != nil {
			return err
		}
	}

	key, err := keys.Derive(identity, args, cfg.suffix)
	if err != nil {
		return err
	}
	return c.backend.Drop(ctx, key)
}

// increment and timing guard the sink: a misbehaving sink must never
// affect the outcome of the surrounding cache operation.

func (c *Client) increment(name string) {
	defer func() { _ = recover() }()
	c.stats.Increment(name)
}

func (c *Client) timing(name string, d time.Duration) {
	defer func() { _ = recover() }()
	c.stats.Timing(name, d)
}

func (c *Client) startSpan(ctx context.Context, name string, key keys.Key) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, nil
	}
	return c.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("ceych.key", key.ID),
			attribute.String("ceych.segment", key.Segment),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
