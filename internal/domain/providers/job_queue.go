package providers

import (
	"context"
	"time"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// JobQueue delivers note jobs to workers
type JobQueue interface {
	// Enqueue adds a job to the tail of the queue
	Enqueue(ctx context.Context, job *entities.NoteJob) error

	// Dequeue waits up to wait for a job. It returns nil, nil when none arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*entities.NoteJob, error)

	// AcquireLock takes an exclusive lease on key and returns the token that
	// owns it. acquired is false when the lease is held elsewhere.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)

	// ReleaseLock drops the lease on key only while token still owns it
	ReleaseLock(ctx context.Context, key, token string) error

	// Close releases queue resources
	Close() error
}

// TranscriptLockKey returns the lease key that keeps one job per transcript in flight
func TranscriptLockKey(transcriptID string) string {
	return "lock:transcript:" + transcriptID
}
