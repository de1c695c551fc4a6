package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/visitscribe/internal/domain/providers"
	redisclient "github.com/zatekoja/visitscribe/internal/infrastructure/clients/redis"
)

// incrScript adds ARGV[1] and applies the ARGV[2] millisecond expiry only to a
// key that has none, so a day counter keeps the TTL it was created with.
var incrScript = redis.NewScript(`
local n = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and redis.call("PTTL", KEYS[1]) == -1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return n
`)

// RedisCounterStore implements the CounterStore interface using Redis
type RedisCounterStore struct {
	rdb redis.Cmdable
}

// NewRedisCounterStore creates a counter store backed by the shared Redis client
func NewRedisCounterStore(client *redisclient.Client) providers.CounterStore {
	return &RedisCounterStore{rdb: client.Client()}
}

// IncrBy adds delta in one server-side step and sets the expiry on first use
func (s *RedisCounterStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.rdb, []string{key}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return n, nil
}

// Get returns the counter value, zero when absent
func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return val, nil
}
