package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the handler for a job.
type Kind string

const (
	KindScanIdentity  Kind = "scan_identity"
	KindDispatchAlert Kind = "dispatch_alert"
	KindDigestUser    Kind = "digest_user"
)

// Job is one unit of background work. Jobs are serialized as JSON onto the
// durable stream; Attempt counts deliveries so retry accounting survives
// requeues and process restarts.
type Job struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ScanPayload targets one monitored identity.
type ScanPayload struct {
	IdentityID uuid.UUID `json:"identity_id"`
}

// DispatchPayload targets one breach event. Force bypasses the
// already-notified guard for manual resends.
type DispatchPayload struct {
	EventID uuid.UUID `json:"event_id"`
	Force   bool      `json:"force,omitempty"`
}

// DigestPayload targets one user's weekly summary.
type DigestPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// MaxAttempts bounds retries per job kind. Mirrors the production schedule:
// scans retry hardest, dispatch twice, digests are best-effort.
func MaxAttempts(kind Kind) int {
	switch kind {
	case KindScanIdentity:
		return 3
	case KindDispatchAlert:
		return 2
	default:
		return 1
	}
}

// NewScanJob builds a scan job for one identity.
func NewScanJob(identityID uuid.UUID) Job {
	return newJob(KindScanIdentity, ScanPayload{IdentityID: identityID})
}

// NewDispatchJob builds an alert dispatch job for one breach event.
func NewDispatchJob(eventID uuid.UUID) Job {
	return newJob(KindDispatchAlert, DispatchPayload{EventID: eventID})
}

// NewResendJob builds a dispatch job that re-sends alerts even when the
// event was already notified.
func NewResendJob(eventID uuid.UUID) Job {
	return newJob(KindDispatchAlert, DispatchPayload{EventID: eventID, Force: true})
}

// NewDigestJob builds a weekly digest job for one user.
func NewDigestJob(userID uuid.UUID) Job {
	return newJob(KindDigestUser, DigestPayload{UserID: userID})
}

func newJob(kind Kind, payload any) Job {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload structs above marshal unconditionally.
		panic(fmt.Sprintf("marshal %s payload: %v", kind, err))
	}
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Decode unmarshals the payload into out.
func (j Job) Decode(out any) error {
	if err := json.Unmarshal(j.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}
