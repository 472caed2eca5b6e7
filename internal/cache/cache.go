package cache

import (
	"context"
	"time"
)

// Cache is a best-effort key/value store. Failures are reported but the
// service works without one.
type Cache interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}
