package breach

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists breach events. Create participates in the scan transaction
// via pkg/platform/tx; MarkNotified is the atomic conditional transition used
// by alert dispatch and must see at most one winner per event.
type Store interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Exists(ctx context.Context, identityID uuid.UUID, name string) (bool, error)

	// MarkNotified flips is_notified only when it is still FALSE and stamps
	// the timestamp. Returns false when another dispatch already won.
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	UpdateRemediation(ctx context.Context, id uuid.UUID, text string) error

	// ListUnnotifiedByIdentity returns the IDs of the identity's events still
	// awaiting dispatch, oldest detection first.
	ListUnnotifiedByIdentity(ctx context.Context, identityID uuid.UUID) ([]uuid.UUID, error)

	// ListByUser returns every event across the user's active identities,
	// newest detection first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Event, error)

	// AggregateForUser computes digest numbers across all of the user's
	// identities, counting events detected at or after since as new.
	AggregateForUser(ctx context.Context, userID uuid.UUID, since time.Time) (UserAggregate, error)
}
