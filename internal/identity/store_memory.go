package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"breachshield/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store used by unit tests and local wiring.
// Mutations are guarded by a single lock; copies are returned so callers
// never share the stored structs.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]*MonitoredIdentity
	byHash     map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[uuid.UUID]*MonitoredIdentity),
		byHash:     make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, mi *MonitoredIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[mi.Hash]; exists {
		return sentinel.ErrConflict
	}
	copied := *mi
	s.identities[mi.ID] = &copied
	s.byHash[mi.Hash] = mi.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*MonitoredIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mi, ok := s.identities[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *mi
	return &copied, nil
}

func (s *MemoryStore) GetByHash(_ context.Context, hash string) (*MonitoredIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.identities[id]
	return &copied, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*MonitoredIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*MonitoredIdentity
	for _, mi := range s.identities {
		if mi.Active {
			copied := *mi
			out = append(out, &copied)
		}
	}
	sortByAddedAt(out)
	return out, nil
}

func (s *MemoryStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*MonitoredIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*MonitoredIdentity
	for _, mi := range s.identities {
		if mi.Active && mi.UserID == userID {
			copied := *mi
			out = append(out, &copied)
		}
	}
	sortByAddedAt(out)
	return out, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mi, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	mi.Active = false
	return nil
}

func (s *MemoryStore) CommitScan(_ context.Context, id uuid.UUID, scannedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mi, ok := s.identities[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	at := scannedAt
	mi.LastScannedAt = &at
	mi.ScanCount++
	return nil
}

func sortByAddedAt(list []*MonitoredIdentity) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].AddedAt.Before(list[j].AddedAt)
	})
}
