package alerts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	txcontext "breachshield/pkg/platform/tx"
)

// PostgresStore persists the alert audit log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Record(ctx context.Context, rec *DeliveryRecord) error {
	query := `
		INSERT INTO alert_deliveries (id, breach_event_id, channel, recipient, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID, rec.EventID, rec.Channel, rec.Recipient, rec.Status, rec.Detail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record alert delivery: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*DeliveryRecord, error) {
	query := `
		SELECT id, breach_event_id, channel, recipient, status, detail, created_at
		FROM alert_deliveries
		WHERE breach_event_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list alert deliveries: %w", err)
	}
	defer rows.Close()

	var out []*DeliveryRecord
	for rows.Next() {
		rec := &DeliveryRecord{}
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Channel, &rec.Recipient,
			&rec.Status, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert delivery: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert deliveries: %w", err)
	}
	return out, nil
}
