// Package cache holds small read-through caches for slow-changing data such
// as store settings.
package cache

import "context"

// Cache stores opaque values by key. A failed Get is reported as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
}
