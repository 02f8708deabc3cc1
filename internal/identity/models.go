package identity

import (
	"time"

	"github.com/google/uuid"
)

// MonitoredIdentity is a credential address under breach surveillance. The
// raw value is stored encrypted; the SHA-256 hash provides unique lookup and
// the preview a safe display form. Unsubscribing deactivates the row instead
// of deleting it so scan history and the unique hash survive.
type MonitoredIdentity struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Encrypted     string
	Hash          string
	Preview       string
	Active        bool
	AddedAt       time.Time
	LastScannedAt *time.Time
	ScanCount     int
}
