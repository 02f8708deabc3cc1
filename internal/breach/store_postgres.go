package breach

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"breachshield/pkg/platform/sentinel"
	txcontext "breachshield/pkg/platform/tx"
)

// PostgresStore persists breach events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, event *Event) error {
	classes, err := json.Marshal(event.DataClasses)
	if err != nil {
		return fmt.Errorf("marshal data classes: %w", err)
	}

	query := `
		INSERT INTO breach_events (
			id, identity_id, breach_name, breach_domain, breach_date, detected_at,
			data_classes, pwn_count, severity, severity_score,
			is_verified, is_fabricated, is_sensitive, is_notified, remediation_text
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		event.ID, event.IdentityID, event.Name, event.Domain, event.BreachDate, event.DetectedAt,
		classes, event.PwnCount, event.Severity, event.SeverityScore,
		event.IsVerified, event.IsFabricated, event.IsSensitive, event.IsNotified, event.RemediationText,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create breach event: %w", err)
	}
	return nil
}

const eventColumns = `
	id, identity_id, breach_name, breach_domain, breach_date, detected_at,
	data_classes, pwn_count, severity, severity_score,
	is_verified, is_fabricated, is_sensitive, is_notified, notified_at, remediation_text
`

const prefixedEventColumns = `
	be.id, be.identity_id, be.breach_name, be.breach_domain, be.breach_date, be.detected_at,
	be.data_classes, be.pwn_count, be.severity, be.severity_score,
	be.is_verified, be.is_fabricated, be.is_sensitive, be.is_notified, be.notified_at, be.remediation_text
`

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM breach_events WHERE id = $1`

	event := &Event{}
	var classes []byte
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.IdentityID, &event.Name, &event.Domain, &event.BreachDate, &event.DetectedAt,
		&classes, &event.PwnCount, &event.Severity, &event.SeverityScore,
		&event.IsVerified, &event.IsFabricated, &event.IsSensitive, &event.IsNotified, &event.NotifiedAt,
		&event.RemediationText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get breach event: %w", err)
	}
	if err := json.Unmarshal(classes, &event.DataClasses); err != nil {
		return nil, fmt.Errorf("unmarshal data classes: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) Exists(ctx context.Context, identityID uuid.UUID, name string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM breach_events WHERE identity_id = $1 AND breach_name = $2)`,
		identityID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check breach event exists: %w", err)
	}
	return exists, nil
}

// MarkNotified performs the compare-and-set transition. The WHERE guard makes
// concurrent dispatchers race safely: exactly one sees rows > 0.
func (s *PostgresStore) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE breach_events
		SET is_notified = TRUE, notified_at = $2
		WHERE id = $1 AND is_notified = FALSE
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notified rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) UpdateRemediation(ctx context.Context, id uuid.UUID, text string) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE breach_events SET remediation_text = $2 WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update remediation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update remediation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnnotifiedByIdentity(ctx context.Context, identityID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM breach_events WHERE identity_id = $1 AND is_notified = FALSE ORDER BY detected_at`,
		identityID)
	if err != nil {
		return nil, fmt.Errorf("list unnotified events: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unnotified event id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unnotified events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Event, error) {
	query := `
		SELECT ` + prefixedEventColumns + `
		FROM breach_events be
		JOIN monitored_identities mi ON mi.id = be.identity_id
		WHERE mi.user_id = $1 AND mi.is_active = TRUE
		ORDER BY be.detected_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list breach events for user: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		event := &Event{}
		var classes []byte
		if err := rows.Scan(
			&event.ID, &event.IdentityID, &event.Name, &event.Domain, &event.BreachDate, &event.DetectedAt,
			&classes, &event.PwnCount, &event.Severity, &event.SeverityScore,
			&event.IsVerified, &event.IsFabricated, &event.IsSensitive, &event.IsNotified, &event.NotifiedAt,
			&event.RemediationText,
		); err != nil {
			return nil, fmt.Errorf("scan breach event: %w", err)
		}
		if err := json.Unmarshal(classes, &event.DataClasses); err != nil {
			return nil, fmt.Errorf("unmarshal data classes: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breach events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AggregateForUser(ctx context.Context, userID uuid.UUID, since time.Time) (UserAggregate, error) {
	query := `
		SELECT
			COUNT(DISTINCT mi.id),
			COUNT(be.id),
			COUNT(be.id) FILTER (WHERE be.detected_at >= $2),
			COALESCE(MAX(be.severity_score), 0)
		FROM monitored_identities mi
		LEFT JOIN breach_events be ON be.identity_id = mi.id
		WHERE mi.user_id = $1 AND mi.is_active = TRUE
	`
	var agg UserAggregate
	err := s.db.QueryRowContext(ctx, query, userID, since).Scan(
		&agg.TotalMonitored, &agg.TotalBreaches, &agg.NewSince, &agg.MaxScore,
	)
	if err != nil {
		return UserAggregate{}, fmt.Errorf("aggregate breaches for user: %w", err)
	}
	return agg, nil
}
