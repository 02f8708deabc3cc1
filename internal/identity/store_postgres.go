package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"breachshield/pkg/platform/sentinel"
	txcontext "breachshield/pkg/platform/tx"
)

// PostgresStore persists monitored identities in PostgreSQL. Pure I/O; scan
// bookkeeping rules live in the ingestion scanner.
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

const identityColumns = `id, user_id, value_encrypted, value_hash, value_preview, is_active, added_at, last_scanned_at, scan_count`

func (s *PostgresStore) Create(ctx context.Context, mi *MonitoredIdentity) error {
	query := `
		INSERT INTO monitored_identities (id, user_id, value_encrypted, value_hash, value_preview, is_active, added_at, scan_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		mi.ID, mi.UserID, mi.Encrypted, mi.Hash, mi.Preview, mi.Active, mi.AddedAt, mi.ScanCount,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create monitored identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*MonitoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM monitored_identities WHERE id = $1`
	return scanIdentity(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetByHash(ctx context.Context, hash string) (*MonitoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM monitored_identities WHERE value_hash = $1`
	return scanIdentity(s.execer(ctx).QueryRowContext(ctx, query, hash))
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*MonitoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM monitored_identities WHERE is_active = TRUE ORDER BY added_at`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*MonitoredIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM monitored_identities WHERE is_active = TRUE AND user_id = $1 ORDER BY added_at`
	return s.list(ctx, query, userID)
}

// Deactivate soft-deletes: the row, its unique hash and its scan history stay.
func (s *PostgresStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE monitored_identities SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate monitored identity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CommitScan stamps the scan timestamp and increments the counter. Runs
// inside the scan transaction when one is on the context.
func (s *PostgresStore) CommitScan(ctx context.Context, id uuid.UUID, scannedAt time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE monitored_identities
		SET last_scanned_at = $2, scan_count = scan_count + 1
		WHERE id = $1
	`, id, scannedAt)
	if err != nil {
		return fmt.Errorf("commit scan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit scan rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*MonitoredIdentity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list monitored identities: %w", err)
	}
	defer rows.Close()

	var out []*MonitoredIdentity
	for rows.Next() {
		mi := &MonitoredIdentity{}
		if err := rows.Scan(&mi.ID, &mi.UserID, &mi.Encrypted, &mi.Hash, &mi.Preview,
			&mi.Active, &mi.AddedAt, &mi.LastScannedAt, &mi.ScanCount); err != nil {
			return nil, fmt.Errorf("scan monitored identity: %w", err)
		}
		out = append(out, mi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitored identities: %w", err)
	}
	return out, nil
}

func scanIdentity(row *sql.Row) (*MonitoredIdentity, error) {
	mi := &MonitoredIdentity{}
	err := row.Scan(&mi.ID, &mi.UserID, &mi.Encrypted, &mi.Hash, &mi.Preview,
		&mi.Active, &mi.AddedAt, &mi.LastScannedAt, &mi.ScanCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get monitored identity: %w", err)
	}
	return mi, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
