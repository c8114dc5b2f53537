// Package cache provides a small in-process caching interface, used as a
// local front cache for data that otherwise lives behind a broker round
// trip.
//
// Usage:
//
//	import "github.com/chris-alexander-pop/ti-engine/pkg/cache/adapters/memory"
//
//	cache := memory.New()
//	defer cache.Close()
//
//	err := cache.Set(ctx, "key", value, time.Hour)
//	err = cache.Get(ctx, "key", &result)
package cache

import (
	"context"
	"time"
)

// Cache defines the standard caching interface.
type Cache interface {
	// Get retrieves a value by key and unmarshals into dest.
	// Returns errors.NotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value with a TTL.
	// A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from the cache.
	// Returns nil if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Incr increments a counter by delta and returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// Close releases all resources.
	Close() error
}
