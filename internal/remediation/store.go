package remediation

import "context"

// CacheStore persists advisory text. Upsert is last-write-wins: concurrent
// generations for the same key are benign because the text is idempotent per
// key, so no exclusive lock is held across generation.
type CacheStore interface {
	Lookup(ctx context.Context, key string) (*CacheEntry, error)
	Upsert(ctx context.Context, entry *CacheEntry) error
	IncrementHit(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}
