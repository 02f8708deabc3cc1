package remediation

import "time"

// CacheEntry is one cached piece of advisory text, keyed by the deterministic
// fingerprint of (breach name, sorted exposed-category set). Entries are
// shared across every identity and user hit by an equivalent breach shape.
type CacheEntry struct {
	CacheKey    string
	BreachName  string
	DataClasses []string
	Text        string
	HitCount    int
	CreatedAt   time.Time
}
