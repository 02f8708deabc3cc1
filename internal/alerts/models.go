package alerts

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// SkipReasonSeverity marks SMS deliveries suppressed because the breach did
// not clear the CRITICAL/HIGH bar.
const SkipReasonSeverity = "severity_below_threshold"

// DeliveryRecord is one append-only entry in the alert audit log. Every
// delivery attempt, success or not, leaves a record; skipped channels record
// the reason in Detail.
type DeliveryRecord struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Channel   string
	Recipient string
	Status    string
	Detail    string
	CreatedAt time.Time
}
