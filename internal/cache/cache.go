// Package cache stores computed keyword spectra between runs so the library
// does not have to decode and transform every template on startup.
//
// Keys are hierarchical paths such as {"spectrum", "clap"} joined with ':'.
// A BadgerDB implementation persists entries; Memory is used when no cache
// directory is configured and in tests.
package cache

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("cache: not found")

// Separator joins key segments.
const Separator = ":"

// Key is a hierarchical path. Segments must not contain Separator.
type Key []string

// String returns the encoded key.
func (k Key) String() string {
	return strings.Join(k, Separator)
}

// Store is a byte-valued key-value store.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// Keys returns every key under prefix in lexicographic order.
	Keys(ctx context.Context, prefix Key) ([]Key, error)

	// Close releases any resources held by the store.
	Close() error
}

func decodeKey(s string) Key {
	return Key(strings.Split(s, Separator))
}

// prefixString returns the encoded prefix with a trailing separator so that
// "a:b" does not match "a:bc". An empty prefix matches everything.
func prefixString(prefix Key) string {
	if len(prefix) == 0 {
		return ""
	}
	return prefix.String() + Separator
}
