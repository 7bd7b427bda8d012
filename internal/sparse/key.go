package sparse

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key is an immutable coordinate key: the UTF-8 bytes of a feature name.
//
// Equality and hashing are over the bytes. Converting between Key and string
// does not copy, so a Key built from a feature name shares its storage.
type Key string

// NewKey returns the key for a feature name.
func NewKey(name string) Key {
	return Key(name)
}

// KeyFromBytes returns a key holding a copy of b.
func KeyFromBytes(b []byte) Key {
	return Key(b)
}

// Bytes returns a copy of the key's bytes.
func (k Key) Bytes() []byte {
	return []byte(k)
}

// String returns the feature name.
func (k Key) String() string {
	return string(k)
}

func (k Key) hash() uint64 {
	return xxhash.Sum64String(string(k))
}

// KeyOf converts a string, []byte or Key to a Key.
func KeyOf(v any) (Key, error) {
	switch k := v.(type) {
	case Key:
		return k, nil
	case string:
		return Key(k), nil
	case []byte:
		return Key(k), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidKeyType, v)
	}
}
