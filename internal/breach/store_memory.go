package breach

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"breachshield/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store used by unit tests and local wiring. The
// identity->user mapping needed by AggregateForUser is seeded by tests via
// LinkIdentity, mirroring the join the postgres store performs.
type MemoryStore struct {
	mu            sync.RWMutex
	events        map[uuid.UUID]*Event
	identityOwner map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[uuid.UUID]*Event),
		identityOwner: make(map[uuid.UUID]uuid.UUID),
	}
}

// LinkIdentity registers which user owns an identity so aggregates can join.
func (s *MemoryStore) LinkIdentity(identityID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identityOwner[identityID] = userID
}

func (s *MemoryStore) Create(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.IdentityID == event.IdentityID && existing.Name == event.Name {
			return sentinel.ErrConflict
		}
	}
	copied := *event
	copied.DataClasses = append([]string(nil), event.DataClasses...)
	s.events[event.ID] = &copied
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *event
	copied.DataClasses = append([]string(nil), event.DataClasses...)
	return &copied, nil
}

func (s *MemoryStore) Exists(_ context.Context, identityID uuid.UUID, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.IdentityID == identityID && event.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) MarkNotified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok || event.IsNotified {
		return false, nil
	}
	stamped := at
	event.IsNotified = true
	event.NotifiedAt = &stamped
	return true, nil
}

func (s *MemoryStore) UpdateRemediation(_ context.Context, id uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	event.RemediationText = text
	return nil
}

func (s *MemoryStore) ListUnnotifiedByIdentity(_ context.Context, identityID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*Event
	for _, event := range s.events {
		if event.IdentityID == identityID && !event.IsNotified {
			pending = append(pending, event)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DetectedAt.Before(pending[j].DetectedAt)
	})

	out := make([]uuid.UUID, 0, len(pending))
	for _, event := range pending {
		out = append(out, event.ID)
	}
	return out, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, event := range s.events {
		if s.identityOwner[event.IdentityID] != userID {
			continue
		}
		copied := *event
		copied.DataClasses = append([]string(nil), event.DataClasses...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out, nil
}

func (s *MemoryStore) AggregateForUser(_ context.Context, userID uuid.UUID, since time.Time) (UserAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make(map[uuid.UUID]bool)
	for identityID, owner := range s.identityOwner {
		if owner == userID {
			owned[identityID] = true
		}
	}

	agg := UserAggregate{TotalMonitored: len(owned)}
	for _, event := range s.events {
		if !owned[event.IdentityID] {
			continue
		}
		agg.TotalBreaches++
		if !event.DetectedAt.Before(since) {
			agg.NewSince++
		}
		if event.SeverityScore > agg.MaxScore {
			agg.MaxScore = event.SeverityScore
		}
	}
	return agg, nil
}

// Count reports the number of stored events. Test helper.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
