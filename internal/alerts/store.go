package alerts

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the alert audit log. Records are never updated or deleted
// by the pipeline.
type Store interface {
	Record(ctx context.Context, rec *DeliveryRecord) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*DeliveryRecord, error)
}
