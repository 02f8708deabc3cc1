package remediation

import (
	"context"
	"sync"

	"breachshield/pkg/platform/sentinel"
)

// MemoryStore is an in-memory CacheStore used by unit tests and local wiring.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*CacheEntry)}
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *entry
	copied.DataClasses = append([]string(nil), entry.DataClasses...)
	return &copied, nil
}

func (s *MemoryStore) Upsert(_ context.Context, entry *CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	copied.DataClasses = append([]string(nil), entry.DataClasses...)
	if existing, ok := s.entries[entry.CacheKey]; ok {
		// Last write wins for the text; the hit counter survives.
		copied.HitCount = existing.HitCount
	}
	s.entries[entry.CacheKey] = &copied
	return nil
}

func (s *MemoryStore) IncrementHit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		entry.HitCount++
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports the number of cached entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
