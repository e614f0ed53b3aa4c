package backend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jonwraymond/ceych/keys"
)

// Redis is a Backend shared across processes. Items are serialized to
// msgpack and expiry uses native Redis TTLs. The caller owns the
// redis.Client lifecycle; Stop only marks the backend not-ready.
type Redis struct {
	client *redis.Client
	cfg    config
	ready  atomic.Bool
}

var _ Backend = (*Redis)(nil)

// NewRedis returns a not-ready Backend over an existing client. Start
// pings the server before accepting traffic.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (r *Redis) IsReady() bool {
	return r.ready.Load()
}

// Start verifies connectivity with a ping and marks the backend ready.
// Idempotent.
func (r *Redis) Start(ctx context.Context) error {
	if r.ready.Load() {
		return nil
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Ping(qctx).Err(); err != nil {
		return fmt.Errorf("backend: redis ping: %w", classify(err))
	}
	r.ready.Store(true)
	return nil
}

// Stop marks the backend not-ready. The client is left open for the owner
// to close. Idempotent.
func (r *Redis) Stop(_ context.Context) error {
	r.ready.Store(false)
	return nil
}

func (r *Redis) Get(ctx context.Context, key keys.Key) (*Entry, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	data, err := r.client.Get(qctx, r.storageKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	// Decoding is deferred to the consumer: the stored bytes round-trip
	// through Entry.Item, marked Encoded so typed decode happens where T
	// is known.
	return &Entry{Item: data, Encoded: true}, nil
}

func (r *Redis) Set(ctx context.Context, key keys.Key, item any, ttl time.Duration) error {
	if !r.ready.Load() {
		return ErrNotReady
	}
	if ttl <= 0 {
		return nil
	}
	data, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("backend: marshal item: %w", err)
	}

	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, r.storageKey(key), data, ttl).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Redis) Drop(ctx context.Context, key keys.Key) error {
	if !r.ready.Load() {
		return ErrNotReady
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Del(qctx, r.storageKey(key)).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Redis) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *Redis) storageKey(key keys.Key) string {
	if r.cfg.prefix == "" {
		return key.String()
	}
	return r.cfg.prefix + ":" + key.String()
}

// classify maps deadline errors onto ErrTimeout so the engine can treat
// write timeouts as degraded-but-non-fatal.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
