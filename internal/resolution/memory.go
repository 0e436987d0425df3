package resolution

import (
	"context"
	"sync"
)

// MemoryStore keeps contexts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]map[string]string)}
}

func (s *MemoryStore) SetResolutionValues(_ context.Context, contextID string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.contexts[contextID]
	if !ok {
		table = make(map[string]string, len(values))
		s.contexts[contextID] = table
	}
	for k, v := range values {
		table[k] = v
	}
	return nil
}

func (s *MemoryStore) GetResolutionValues(_ context.Context, contextID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := s.contexts[contextID]
	out := make(map[string]string, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) DeleteResolutionValues(_ context.Context, contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, contextID)
	return nil
}

// Len reports the number of live contexts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
