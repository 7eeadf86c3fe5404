// Package cache provides the TTL key-value stores backing the session
// pagination cache and the embedding cache. Entries are always written
// whole and expired lazily on read.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get for missing or expired keys.
var ErrKeyNotFound = errors.New("cache: key not found")

// Store is the minimal TTL key-value contract. Implementations must be safe
// for concurrent use; callers always overwrite full entries.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
