package remediation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"breachshield/pkg/platform/sentinel"
)

// PostgresStore persists the remediation cache in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, key string) (*CacheEntry, error) {
	query := `
		SELECT cache_key, breach_name, data_classes, remediation_text, hit_count, created_at
		FROM remediation_cache
		WHERE cache_key = $1
	`
	entry := &CacheEntry{}
	var classes []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&entry.CacheKey, &entry.BreachName, &classes, &entry.Text, &entry.HitCount, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup remediation cache: %w", err)
	}
	if err := json.Unmarshal(classes, &entry.DataClasses); err != nil {
		return nil, fmt.Errorf("unmarshal cached data classes: %w", err)
	}
	return entry, nil
}

// Upsert writes an entry, overwriting any concurrent write for the same key.
// Last write wins by design: equivalent keys carry equivalent advice.
func (s *PostgresStore) Upsert(ctx context.Context, entry *CacheEntry) error {
	classes, err := json.Marshal(entry.DataClasses)
	if err != nil {
		return fmt.Errorf("marshal data classes: %w", err)
	}
	query := `
		INSERT INTO remediation_cache (cache_key, breach_name, data_classes, remediation_text, hit_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			remediation_text = EXCLUDED.remediation_text,
			breach_name = EXCLUDED.breach_name,
			data_classes = EXCLUDED.data_classes
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.CacheKey, entry.BreachName, classes, entry.Text, entry.HitCount, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert remediation cache: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementHit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE remediation_cache SET hit_count = hit_count + 1 WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("increment cache hit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM remediation_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete remediation cache entry: %w", err)
	}
	return nil
}
