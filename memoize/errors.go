package memoize

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/ceych/keys"
)

// Configuration errors, returned synchronously at construction or wrap time.
var (
	// ErrNilBackend indicates Config.Backend was not provided.
	ErrNilBackend = errors.New("memoize: backend is required")

	// ErrNilClient indicates a nil *Client was passed to Wrap.
	ErrNilClient = errors.New("memoize: client is required")

	// ErrNilFunction indicates the computation passed to Wrap is nil.
	ErrNilFunction = errors.New("memoize: computation is required")

	// ErrInvalidTTL indicates a negative TTL. Zero means "use the default".
	ErrInvalidTTL = errors.New("memoize: ttl must be greater than zero")
)

// LookupError wraps a backend failure during the cache lookup. The
// computation is never invoked after a lookup failure.
type LookupError struct {
	Key keys.Key
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("memoize: lookup %s: %v", e.Key.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// StoreError wraps a backend failure while storing a freshly computed
// result. The result was computed successfully but could not be cached.
type StoreError struct {
	Key keys.Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("memoize: store %s: %v", e.Key.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
