package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the account that owns monitored identities. The pipeline only ever
// reads users: account CRUD and authentication belong to the outer API layer.
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Phone     string // E.164, empty when no number is on file
	Active    bool
	CreatedAt time.Time
}
