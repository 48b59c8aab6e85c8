// Package cache provides the keyed byte cache used for configuration lists.
// Entries larger than the configured limit are rejected with ErrTooLarge.
package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxEntryBytes bounds a single cached value.
const DefaultMaxEntryBytes = 100 * 1024

// ErrTooLarge is returned by Set when a value exceeds the entry limit.
var ErrTooLarge = errors.New("cache: entry too large")

// Cache stores opaque values under named keys.
type Cache interface {
	// Get returns the value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
