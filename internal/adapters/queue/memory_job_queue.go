package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
)

// MemoryJobQueue is an in-process JobQueue for single-instance runs and tests
type MemoryJobQueue struct {
	jobs chan *entities.NoteJob

	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

type lease struct {
	token     string
	expiresAt time.Time
}

var _ providers.JobQueue = (*MemoryJobQueue)(nil)

// NewMemoryJobQueue creates a queue holding up to capacity pending jobs
func NewMemoryJobQueue(capacity int) *MemoryJobQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryJobQueue{
		jobs:   make(chan *entities.NoteJob, capacity),
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// Enqueue adds a job, blocking while the queue is full
func (q *MemoryJobQueue) Enqueue(ctx context.Context, job *entities.NoteJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue waits up to wait for a job
func (q *MemoryJobQueue) Dequeue(ctx context.Context, wait time.Duration) (*entities.NoteJob, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		return job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of pending jobs
func (q *MemoryJobQueue) Len() int {
	return len(q.jobs)
}

// AcquireLock takes the lease on key unless an unexpired one exists
func (q *MemoryJobQueue) AcquireLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if current, held := q.leases[key]; held && q.now().Before(current.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	q.leases[key] = lease{token: token, expiresAt: q.now().Add(ttl)}
	return token, true, nil
}

// ReleaseLock drops the lease on key if token still holds it
func (q *MemoryJobQueue) ReleaseLock(_ context.Context, key, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if current, held := q.leases[key]; held && current.token == token {
		delete(q.leases, key)
	}
	return nil
}

// Close is a no-op
func (q *MemoryJobQueue) Close() error {
	return nil
}
