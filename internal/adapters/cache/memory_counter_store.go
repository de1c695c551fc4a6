package cache

import (
	"context"
	"sync"
	"time"

	"github.com/zatekoja/visitscribe/internal/domain/providers"
)

type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryCounterStore is a process-local CounterStore for single-instance runs and tests
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var _ providers.CounterStore = (*MemoryCounterStore)(nil)

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (s *MemoryCounterStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// IncrBy adds delta to key. A key without an expiry takes ttl.
func (s *MemoryCounterStore) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, _ := s.live(key)
	if entry.expiresAt.IsZero() && ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	entry.value += delta
	s.entries[key] = entry
	return entry.value, nil
}

// Get returns the value for key, zero when absent
func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, _ := s.live(key)
	return entry.value, nil
}
