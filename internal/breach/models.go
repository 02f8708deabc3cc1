package breach

import (
	"time"

	"github.com/google/uuid"
)

// Event is one detected exposure of a monitored identity in a named external
// incident. (identity, breach name) is unique, which makes repeated sweeps
// idempotent. The notification fields are the only part mutated after
// creation, and only through the one-way UNNOTIFIED -> NOTIFIED transition.
type Event struct {
	ID              uuid.UUID
	IdentityID      uuid.UUID
	Name            string
	Domain          string
	BreachDate      *time.Time
	DetectedAt      time.Time
	DataClasses     []string
	PwnCount        int
	Severity        string
	SeverityScore   int
	IsVerified      bool
	IsFabricated    bool
	IsSensitive     bool
	IsNotified      bool
	NotifiedAt      *time.Time
	RemediationText string
}

// UserAggregate summarizes a user's breach exposure for the weekly digest.
type UserAggregate struct {
	TotalMonitored int
	TotalBreaches  int
	NewSince       int
	MaxScore       int
}
