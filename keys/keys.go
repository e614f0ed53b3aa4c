package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
)

// Version is the engine release identifier baked into every Key's Segment.
// Bump it when the key derivation scheme changes incompatibly; old entries
// under the previous segment simply expire unused.
const Version = "1.0.0"

const segmentPrefix = "ceych_"

// Key addresses a cache entry in a backend.
//
// For a fixed identity, argument list, and suffix the ID is deterministic
// and reproducible across processes. Keys are computed fresh on every call
// and never stored as standalone entities.
type Key struct {
	// ID is the lowercase hex SHA-256 digest of identity + canonical
	// JSON(args) + suffix.
	ID string

	// Segment is the version-scoped namespace, e.g. "ceych_1.0.0".
	Segment string
}

// String returns the flattened storage form "<segment>:<id>".
func (k Key) String() string {
	return k.Segment + ":" + k.ID
}

// Segment returns the namespace used by the current engine version.
func Segment() string {
	return segmentPrefix + Version
}

// Derive produces the Key for a computation identity, its positional
// arguments, and an optional suffix. The suffix participates in the digest
// only when non-empty. Argument order is significant.
func Derive(identity string, args []any, suffix string) (Key, error) {
	if identity == "" {
		return Key{}, ErrNoIdentity
	}

	encoded, err := canonicalizeSlice(args)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}

	payload := make([]byte, 0, len(identity)+len(encoded)+len(suffix))
	payload = append(payload, identity...)
	payload = append(payload, encoded...)
	if suffix != "" {
		payload = append(payload, suffix...)
	}

	digest := sha256.Sum256(payload)
	return Key{
		ID:      hex.EncodeToString(digest[:]),
		Segment: Segment(),
	}, nil
}

// Identity resolves a stable textual identity for a function value: its
// fully qualified runtime name. Anonymous closures get compiler-assigned
// names (pkg.Caller.func1) that are stable within a build but not across
// refactors; callers caching closures should register an explicit name
// instead.
func Identity(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return "", ErrNotFunction
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "", ErrNotFunction
	}
	return rf.Name(), nil
}

// maxDepth bounds recursion through nested maps and slices. A cyclic
// map[string]any never terminates otherwise; hitting the bound reports the
// argument as unserializable.
const maxDepth = 128

// canonicalize produces a deterministic JSON representation of a value.
// Maps are emitted with sorted keys so insertion order never leaks into
// the digest.
func canonicalize(v any, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, errors.New("nesting too deep (cyclic argument?)")
	}
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val, depth)
	case []any:
		return canonicalizeSliceDepth(val, depth)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any, depth int) ([]byte, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	result := []byte("{")
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}

		nameBytes, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		result = append(result, nameBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[name], depth+1)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	return canonicalizeSliceDepth(s, 0)
}

func canonicalizeSliceDepth(s []any, depth int) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v, depth+1)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
