package presence

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for single-instance development and
// tests. It provides the same transition semantics as the Redis store but
// obviously cannot span instances.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryStore creates an empty in-process presence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) Connect(_ context.Context, principalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[principalID]++
	return s.counts[principalID], nil
}

func (s *MemoryStore) Disconnect(_ context.Context, principalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[principalID]
	if n <= 1 {
		delete(s.counts, principalID)
		return 0, nil
	}
	s.counts[principalID] = n - 1
	return n - 1, nil
}

func (s *MemoryStore) Count(_ context.Context, principalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[principalID], nil
}

func (s *MemoryStore) Online(_ context.Context, principalIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	online := make(map[string]bool, len(principalIDs))
	for _, id := range principalIDs {
		online[id] = s.counts[id] > 0
	}
	return online, nil
}
