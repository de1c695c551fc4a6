package providers

import (
	"context"
	"time"
)

// CounterStore is the shared atomic counter backend used by the budget guard
type CounterStore interface {
	// IncrBy atomically adds delta to key and returns the new value.
	// A key created by this call expires after ttl.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Get returns the current value, zero when the key is absent
	Get(ctx context.Context, key string) (int64, error)
}
