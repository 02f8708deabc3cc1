package remediation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	calls int
	text  string
	err   error
}

func (g *fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func TestCacheKeyPermutationInvariant(t *testing.T) {
	a := CacheKey("ExampleBreach", []string{"Passwords", "Email addresses", "Usernames"})
	b := CacheKey("ExampleBreach", []string{"Usernames", "Passwords", "Email addresses"})

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Different name or category set yields a different key.
	assert.NotEqual(t, a, CacheKey("OtherBreach", []string{"Passwords", "Email addresses", "Usernames"}))
	assert.NotEqual(t, a, CacheKey("ExampleBreach", []string{"Passwords"}))
}

func TestAdviseGeneratesOnceThenHitsCache(t *testing.T) {
	gen := &fakeGenerator{text: "1. Change your password."}
	store := NewMemoryStore()
	advisor := NewAdvisor(store, gen, zap.NewNop())
	ctx := context.Background()

	first := advisor.Advise(ctx, "ExampleBreach", []string{"Passwords", "Email addresses"})
	assert.Equal(t, "1. Change your password.", first)
	assert.Equal(t, 1, gen.calls)

	// Identical shape, permuted categories: served from cache, no second call.
	second := advisor.Advise(ctx, "ExampleBreach", []string{"Email addresses", "Passwords"})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)

	entry, err := store.Lookup(ctx, CacheKey("ExampleBreach", []string{"Passwords", "Email addresses"}))
	require.NoError(t, err)
	assert.Equal(t, 2, entry.HitCount)
}

func TestAdviseFallsBackOnGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("api unavailable")}
	store := NewMemoryStore()
	advisor := NewAdvisor(store, gen, zap.NewNop())

	text := advisor.Advise(context.Background(), "ExampleBreach", []string{"Passwords"})

	assert.Equal(t, FallbackText, text)
	// Nothing is cached on failure; a later call tries again.
	assert.Equal(t, 0, store.Len())

	gen.err = nil
	gen.text = "generated later"
	assert.Equal(t, "generated later", advisor.Advise(context.Background(), "ExampleBreach", []string{"Passwords"}))
}

func TestAdviseFallsBackOnBrokenCache(t *testing.T) {
	gen := &fakeGenerator{text: "advice"}
	advisor := NewAdvisor(failingCache{}, gen, zap.NewNop())

	// Cache errors are absorbed; generation still serves the caller.
	text := advisor.Advise(context.Background(), "ExampleBreach", []string{"Passwords"})
	assert.Equal(t, "advice", text)
	assert.Equal(t, 1, gen.calls)
}

func TestInvalidateForcesRegeneration(t *testing.T) {
	gen := &fakeGenerator{text: "v1"}
	store := NewMemoryStore()
	advisor := NewAdvisor(store, gen, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "v1", advisor.Advise(ctx, "ExampleBreach", []string{"Passwords"}))

	require.NoError(t, advisor.Invalidate(ctx, "ExampleBreach", []string{"Passwords"}))

	gen.text = "v2"
	assert.Equal(t, "v2", advisor.Advise(ctx, "ExampleBreach", []string{"Passwords"}))
	assert.Equal(t, 2, gen.calls)
}

func TestRiskSummaryFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("api unavailable")}
	advisor := NewAdvisor(NewMemoryStore(), gen, zap.NewNop())

	summary := advisor.RiskSummary(context.Background(), 4,
		map[string]int{"CRITICAL": 1, "LOW": 3}, []string{"Email addresses"})

	assert.Contains(t, summary, "4 total breaches")
}

type failingCache struct{}

func (failingCache) Lookup(context.Context, string) (*CacheEntry, error) {
	return nil, errors.New("cache down")
}
func (failingCache) Upsert(context.Context, *CacheEntry) error  { return errors.New("cache down") }
func (failingCache) IncrementHit(context.Context, string) error { return errors.New("cache down") }
func (failingCache) Delete(context.Context, string) error       { return errors.New("cache down") }
