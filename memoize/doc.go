// Package memoize caches the results of asynchronous computations by
// deriving a deterministic key from the computation's identity and its
// call arguments.
//
// Wrap a computation once, then call it anywhere; repeat invocations with
// the same arguments are served from the backend instead of recomputing:
//
//	client, _ := memoize.NewClient(memoize.Config{Backend: be})
//	cached, _ := memoize.Wrap(client, fetchUser, memoize.WithTTL(time.Minute))
//
//	user, err := cached.Do(ctx, "user-123")
//
// Evict an entry by re-deriving its key from the unwrapped computation and
// the original arguments:
//
//	_ = client.Invalidate(ctx, fetchUser, []any{"user-123"})
//
// The engine never retries and never logs; errors surface to the caller
// and counters go to the configured stats sink. When the backend is
// stopped (DisableCache), every call transparently invokes the underlying
// computation.
package memoize
