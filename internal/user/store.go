package user

import (
	"context"

	"github.com/google/uuid"
)

// Store is the read-only user collaborator consumed by alert dispatch and
// the weekly digest.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)
}
