package domain

import (
	"context"
	"time"
)

// TaskCache is a read-through cache for task lookups.
type TaskCache interface {
	// Get returns the cached value for key.
	Get(ctx context.Context, key string) (string, error)
	// SetWithExpiration stores a value with a TTL.
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}
