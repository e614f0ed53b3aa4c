package backend

import (
	"context"
	"time"

	"github.com/jonwraymond/ceych/keys"
)

// Composite chains multiple Backends together. Get checks backends in
// order and returns the first hit; Set and Drop fan out to all of them.
// A common topology is a Memory L1 backed by a Redis L2.
type Composite struct {
	backends []Backend
}

var _ Backend = (*Composite)(nil)

// NewComposite returns a Backend chaining the given backends in order.
// At least one backend must be provided; panics if empty.
func NewComposite(backends ...Backend) *Composite {
	if len(backends) == 0 {
		panic("backend: NewComposite requires at least one backend")
	}
	return &Composite{backends: backends}
}

// IsReady reports true only when every chained backend is ready, so the
// engine bypass gate stays conservative.
func (c *Composite) IsReady() bool {
	for _, b := range c.backends {
		if !b.IsReady() {
			return false
		}
	}
	return true
}

func (c *Composite) Start(ctx context.Context) error {
	for _, b := range c.backends {
		if err := b.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) Stop(ctx context.Context) error {
	var firstErr error
	for _, b := range c.backends {
		if err := b.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Composite) Get(ctx context.Context, key keys.Key) (*Entry, error) {
	for _, b := range c.backends {
		entry, err := b.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

func (c *Composite) Set(ctx context.Context, key keys.Key, item any, ttl time.Duration) error {
	var firstErr error
	for _, b := range c.backends {
		if err := b.Set(ctx, key, item, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Composite) Drop(ctx context.Context, key keys.Key) error {
	var firstErr error
	for _, b := range c.backends {
		if err := b.Drop(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
