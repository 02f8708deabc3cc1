package remediation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"breachshield/pkg/platform/sentinel"
)

// FallbackText is returned whenever advice cannot be generated. Ingestion
// must never stall on advisory failure.
const FallbackText = "Please change your password for this service immediately and enable two-factor authentication."

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breachshield_remediation_cache_hits_total",
		Help: "Remediation cache hits",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breachshield_remediation_cache_misses_total",
		Help: "Remediation cache misses leading to generation",
	})
	generationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breachshield_remediation_generation_failures_total",
		Help: "Advisory generations that fell back to the fixed text",
	})
)

// Generator produces advisory text from a prompt. Implemented by the Claude
// client; tests inject counting fakes.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Advisor resolves remediation text for a breach shape, serving from the
// content-addressed cache and generating on miss.
type Advisor struct {
	cache CacheStore
	gen   Generator
	log   *zap.Logger
	now   func() time.Time
}

func NewAdvisor(cache CacheStore, gen Generator, log *zap.Logger) *Advisor {
	return &Advisor{cache: cache, gen: gen, log: log, now: time.Now}
}

// CacheKey fingerprints a breach shape. Categories are sorted before joining
// so the key is invariant under permutation of the set.
func CacheKey(breachName string, dataClasses []string) string {
	sorted := append([]string(nil), dataClasses...)
	sort.Strings(sorted)
	raw := breachName + "|" + strings.Join(sorted, ",")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Advise returns remediation text for the breach shape. It never returns an
// error: cache failures degrade to generation and generation failures degrade
// to FallbackText.
func (a *Advisor) Advise(ctx context.Context, breachName string, dataClasses []string) string {
	key := CacheKey(breachName, dataClasses)

	entry, err := a.cache.Lookup(ctx, key)
	if err == nil {
		cacheHits.Inc()
		if hitErr := a.cache.IncrementHit(ctx, key); hitErr != nil {
			a.log.Warn("failed to increment cache hit count", zap.String("breach", breachName), zap.Error(hitErr))
		}
		return entry.Text
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		// A broken cache must not break the flow when we can still generate.
		a.log.Warn("remediation cache lookup failed", zap.String("breach", breachName), zap.Error(err))
	}

	cacheMisses.Inc()
	text, err := a.gen.GenerateText(ctx, buildPrompt(breachName, dataClasses))
	if err != nil {
		generationFailures.Inc()
		a.log.Error("remediation generation failed, using fallback",
			zap.String("breach", breachName), zap.Error(err))
		return FallbackText
	}

	if err := a.cache.Upsert(ctx, &CacheEntry{
		CacheKey:    key,
		BreachName:  breachName,
		DataClasses: dataClasses,
		Text:        text,
		HitCount:    1,
		CreatedAt:   a.now(),
	}); err != nil {
		a.log.Warn("failed to cache generated advice", zap.String("breach", breachName), zap.Error(err))
	}
	return text
}

// Invalidate drops the cache entry for a breach shape so the next Advise call
// regenerates.
func (a *Advisor) Invalidate(ctx context.Context, breachName string, dataClasses []string) error {
	return a.cache.Delete(ctx, CacheKey(breachName, dataClasses))
}

// RiskSummary generates a short cross-breach posture summary for the weekly
// digest. Like Advise it degrades to a fixed text instead of failing.
func (a *Advisor) RiskSummary(ctx context.Context, totalBreaches int, severityCounts map[string]int, mostExposed []string) string {
	var parts []string
	for label, n := range severityCounts {
		parts = append(parts, fmt.Sprintf("%s=%d", label, n))
	}
	sort.Strings(parts)

	prompt := fmt.Sprintf(
		"A user has %d total data breaches. Breakdown by severity: %s. "+
			"The most exposed data types are: %s. Write a brief 2-3 sentence risk "+
			"summary assessing their overall cybersecurity posture and the most "+
			"critical threat vector they face right now. Do not include remediation steps.",
		totalBreaches, strings.Join(parts, ", "), strings.Join(mostExposed, ", "),
	)

	text, err := a.gen.GenerateText(ctx, prompt)
	if err != nil {
		a.log.Error("risk summary generation failed, using fallback", zap.Error(err))
		return fmt.Sprintf(
			"You have %d total breaches affecting your accounts. Please review the "+
				"high-severity alerts immediately and monitor your accounts for suspicious activity.",
			totalBreaches,
		)
	}
	return text
}

func buildPrompt(breachName string, dataClasses []string) string {
	classes := strings.Join(dataClasses, ", ")
	return strings.TrimSpace(fmt.Sprintf(`
You are a cybersecurity expert helping a regular person understand
what to do after their data was exposed in a breach.

The user's email was found in the '%[1]s' data breach.
The following types of data were exposed: %[2]s

Write a clear, friendly, step-by-step remediation checklist.
Format your response EXACTLY as follows:

IMMEDIATE ACTIONS (Do these within 1 hour):
1. [specific action]
2. [specific action]

SHORT-TERM ACTIONS (Do these within 24 hours):
3. [specific action]
4. [specific action]

LONG-TERM PROTECTION (Do these this week):
5. [specific action]

RULES FOR YOUR RESPONSE:
- Be specific to the %[1]s platform and what was exposed
- Use plain English, no jargon
- Each step must start with an action verb (e.g., Change, Enable, Check)
- Keep each step to 1-2 sentences maximum
- Total response must be under 400 words
- Do not include any preamble or explanation before the checklist
`, breachName, classes))
}
