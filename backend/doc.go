// Package backend defines the key-value store the memoization engine reads
// through, plus concrete implementations: an in-process memory store, a
// Redis store, an ordered composite chain, and a resilient decorator that
// adds per-operation timeouts and a circuit breaker.
package backend
