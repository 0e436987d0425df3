package availability

import (
	"context"
	"sort"
	"sync"

	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps availability records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]blackboard.AvailabilityRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]blackboard.AvailabilityRecord)}
}

func (s *MemoryStore) UpdateAvailability(_ context.Context, personID string, fn func(current *blackboard.AvailabilityRecord) blackboard.AvailabilityRecord) (*blackboard.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *blackboard.AvailabilityRecord
	if rec, ok := s.records[personID]; ok {
		current = &rec
	}

	next := fn(current)
	next.PersonID = personID
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.records[personID] = next
	return &next, nil
}

// GetAvailability returns redis.Nil for unknown persons, like the Redis store.
func (s *MemoryStore) GetAvailability(_ context.Context, personID string) (*blackboard.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[personID]
	if !ok {
		return nil, redis.Nil
	}
	return &rec, nil
}

func (s *MemoryStore) ListAvailability(_ context.Context, sinceMs, untilMs int64) ([]*blackboard.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*blackboard.AvailabilityRecord, 0, len(s.records))
	for _, rec := range s.records {
		if sinceMs != 0 && rec.UpdatedAtMs < sinceMs {
			continue
		}
		if untilMs != 0 && rec.UpdatedAtMs > untilMs {
			continue
		}
		r := rec
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAtMs != out[j].UpdatedAtMs {
			return out[i].UpdatedAtMs < out[j].UpdatedAtMs
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}
