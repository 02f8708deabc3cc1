package hibp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"breachshield/internal/platform/config"
	"breachshield/pkg/platform/sentinel"
)

func testClient(t *testing.T, apiURL, pwnedURL string) *Client {
	t.Helper()
	limiter := NewRateLimiter(0) // no pacing in unit tests
	return NewClient(config.HIBPConfig{
		APIKey:    "test-key",
		BaseURL:   apiURL,
		PwnedURL:  pwnedURL,
		UserAgent: "breachshield-test",
		Timeout:   5 * time.Second,
	}, limiter, zap.NewNop())
}

func TestLookupNotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	breaches, err := testClient(t, server.URL, server.URL).Lookup(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.Empty(t, breaches)
}

func TestLookupUnauthorizedIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL, server.URL).Lookup(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, sentinel.ErrUnauthorized)
}

func TestLookupSendsAPIKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("hibp-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"Name":"ExampleBreach","Domain":"example.com","BreachDate":"2023-04-01","PwnCount":42,"DataClasses":["Passwords"],"IsVerified":true}]`)
	}))
	defer server.Close()

	breaches, err := testClient(t, server.URL, server.URL).Lookup(context.Background(), "x@example.com")
	require.NoError(t, err)
	require.Len(t, breaches, 1)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "ExampleBreach", breaches[0].Name)
	assert.Equal(t, 42, breaches[0].PwnCount)
}

func TestLookupRetriesOnceAfterRateLimit(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := testClient(t, server.URL, server.URL)
	cooldowns := 0
	client.cooldown = func(context.Context) error { cooldowns++; return nil }

	breaches, err := client.Lookup(context.Background(), "x@example.com")
	require.NoError(t, err)
	assert.Empty(t, breaches)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, cooldowns)
}

func TestLookupSecondRateLimitFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(t, server.URL, server.URL)
	client.cooldown = func(context.Context) error { return nil }

	_, err := client.Lookup(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, sentinel.ErrRateLimited)
}

func TestCheckLeakedSecretKAnonymity(t *testing.T) {
	secret := "password123"
	sum := sha1.Sum([]byte(secret))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("hibp-api-key")
		fmt.Fprintf(w, "0000000000000000000000000000000000A:3\r\n%s:77\r\n", suffix)
	}))
	defer server.Close()

	count, err := testClient(t, server.URL, server.URL).CheckLeakedSecret(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, 77, count)

	// Only the 5-character prefix travels, and never the API key.
	assert.Equal(t, "/range/"+prefix, gotPath)
	assert.NotContains(t, gotPath, suffix)
	assert.Empty(t, gotKey)
}

func TestCheckLeakedSecretNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:12\r\n")
	}))
	defer server.Close()

	count, err := testClient(t, server.URL, server.URL).CheckLeakedSecret(context.Background(), "unique-secret")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLookupAllUsesCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"Name":"A"},{"Name":"B"}]`)
	}))
	defer server.Close()

	client := testClient(t, server.URL, server.URL)

	first, err := client.LookupAll(context.Background())
	require.NoError(t, err)
	second, err := client.LookupAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, requests)
}

func TestNormalize(t *testing.T) {
	normalized := Normalize(RawBreach{
		Name:        "ExampleBreach",
		Domain:      "example.com",
		BreachDate:  "2023-04-01",
		PwnCount:    1000,
		DataClasses: []string{"Passwords", "Email addresses"},
		IsVerified:  true,
		IsSensitive: true,
	})

	require.NotNil(t, normalized.BreachDate)
	assert.Equal(t, 2023, normalized.BreachDate.Year())
	assert.Equal(t, time.April, normalized.BreachDate.Month())
	assert.True(t, normalized.IsSensitive)

	// Malformed dates degrade to nil rather than erroring.
	assert.Nil(t, Normalize(RawBreach{Name: "X", BreachDate: "not-a-date"}).BreachDate)
	assert.Nil(t, Normalize(RawBreach{Name: "X"}).BreachDate)
}

func TestRateLimiterSpacing(t *testing.T) {
	limiter := NewRateLimiter(100 * time.Millisecond)

	current := time.Unix(1000, 0)
	limiter.now = func() time.Time { return current }

	var slept []time.Duration
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		current = current.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx)) // first call claims the slot immediately
	assert.Empty(t, slept)

	current = current.Add(30 * time.Millisecond)
	require.NoError(t, limiter.Wait(ctx))
	require.Len(t, slept, 1)
	assert.Equal(t, 70*time.Millisecond, slept[0])

	current = current.Add(200 * time.Millisecond)
	require.NoError(t, limiter.Wait(ctx))
	assert.Len(t, slept, 1) // interval already elapsed, no sleep
}

func TestRateLimiterCancellation(t *testing.T) {
	limiter := NewRateLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx))
	cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}
