// Package cache provides key-value caching for resolved asset lists.
//
// The manifest is immutable for the life of a process, so the closure of a
// lazy unit's assets only has to be computed once per (manifest, unit,
// options). Resolution results are stored behind the [Cache] interface:
//
//   - [NullCache]: caching disabled
//   - [MemoryCache]: per-process map, the default for a single server
//   - [FileCache]: directory of JSON entries, used by the CLI
//   - [RedisCache]: shared across server instances
//
// Keys come from a [Keyer]; use [NewScopedKeyer] to give several
// applications their own namespace on a shared backend.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long resolved asset lists are kept.
const DefaultTTL = time.Hour

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
