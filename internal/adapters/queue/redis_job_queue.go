package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	redisclient "github.com/zatekoja/visitscribe/internal/infrastructure/clients/redis"
)

// releaseScript deletes the lease only while the caller's token still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisJobQueue implements the JobQueue interface with a Redis list and SET NX leases
type RedisJobQueue struct {
	rdb  redis.UniversalClient
	name string
}

// NewRedisJobQueue creates a job queue on the named Redis list
func NewRedisJobQueue(client *redisclient.Client, name string) providers.JobQueue {
	return newRedisJobQueue(client.Client(), name)
}

func newRedisJobQueue(rdb redis.UniversalClient, name string) *RedisJobQueue {
	return &RedisJobQueue{
		rdb:  rdb,
		name: name,
	}
}

// Enqueue pushes the job onto the queue
func (q *RedisJobQueue) Enqueue(ctx context.Context, job *entities.NoteJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks up to wait for the oldest job
func (q *RedisJobQueue) Dequeue(ctx context.Context, wait time.Duration) (*entities.NoteJob, error) {
	result, err := q.rdb.BRPop(ctx, wait, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue from %s: %w", q.name, err)
	}
	if len(result) != 2 {
		return nil, nil
	}

	var job entities.NoteJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		log.Error().Err(err).Str("queue", q.name).Msg("dropping malformed job payload")
		return nil, nil
	}
	return &job, nil
}

// AcquireLock takes the lease on key for ttl under a fresh token
func (q *RedisJobQueue) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := q.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock drops the lease on key if token still holds it
func (q *RedisJobQueue) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, q.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the Redis connection is owned by the caller
func (q *RedisJobQueue) Close() error {
	return nil
}
