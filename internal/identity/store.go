package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists monitored identities. CommitScan participates in the scan
// transaction via pkg/platform/tx so the scan counter never advances without
// the breach events discovered in the same sweep.
type Store interface {
	Create(ctx context.Context, mi *MonitoredIdentity) error
	GetByID(ctx context.Context, id uuid.UUID) (*MonitoredIdentity, error)
	GetByHash(ctx context.Context, hash string) (*MonitoredIdentity, error)
	ListActive(ctx context.Context) ([]*MonitoredIdentity, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*MonitoredIdentity, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	CommitScan(ctx context.Context, id uuid.UUID, scannedAt time.Time) error
}
