package keys

import "errors"

// Sentinel errors for key derivation.
var (
	// ErrUnserializable indicates an argument could not be serialized
	// (functions, channels, cyclic object graphs).
	ErrUnserializable = errors.New("keys: argument is not serializable")

	// ErrNotFunction indicates the value passed to Identity is not a
	// callable function.
	ErrNotFunction = errors.New("keys: computation is not a function")

	// ErrNoIdentity indicates an empty identity string was supplied.
	ErrNoIdentity = errors.New("keys: identity is empty")
)
