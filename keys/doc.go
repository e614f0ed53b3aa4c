// Package keys derives deterministic cache keys from a computation's
// identity, its positional arguments, and an optional disambiguating suffix.
//
// A Key addresses an entry in a cache backend. Its ID is a SHA-256 digest
// over the identity, the canonical JSON form of the arguments, and the
// suffix; its Segment namespaces entries by engine release so incompatible
// versions can share one backend without colliding.
package keys
