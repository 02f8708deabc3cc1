package alerts

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*DeliveryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, rec *DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rec
	s.records = append(s.records, &copied)
	return nil
}

func (s *MemoryStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DeliveryRecord
	for _, rec := range s.records {
		if rec.EventID == eventID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

// All returns every record in insertion order. Test helper.
func (s *MemoryStore) All() []*DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*DeliveryRecord, len(s.records))
	copy(out, s.records)
	return out
}
