package hibp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"breachshield/internal/platform/config"
	"breachshield/pkg/platform/sentinel"
)

// allBreachesTTL is how long the full breach catalogue is cached in memory.
const allBreachesTTL = 24 * time.Hour

// rateLimitCooldown is the single pause applied after a 429 before the one
// allowed retry.
const rateLimitCooldown = 5 * time.Second

var feedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "breachshield_feed_request_seconds",
	Help:    "Latency of breach feed requests",
	Buckets: prometheus.DefBuckets,
})

// RawBreach is the feed's wire representation of one breach.
type RawBreach struct {
	Name         string   `json:"Name"`
	Domain       string   `json:"Domain"`
	BreachDate   string   `json:"BreachDate"`
	PwnCount     int      `json:"PwnCount"`
	DataClasses  []string `json:"DataClasses"`
	IsVerified   bool     `json:"IsVerified"`
	IsFabricated bool     `json:"IsFabricated"`
	IsSensitive  bool     `json:"IsSensitive"`
}

// Breach is the normalized internal form of a RawBreach.
type Breach struct {
	Name         string
	Domain       string
	BreachDate   *time.Time
	PwnCount     int
	DataClasses  []string
	IsVerified   bool
	IsFabricated bool
	IsSensitive  bool
}

// Client talks to the Have I Been Pwned APIs. All breach-catalogue requests
// go through the shared rate limiter; the Pwned Passwords range endpoint
// applies k-anonymity and never carries the API key.
type Client struct {
	rest    *resty.Client
	pwned   *resty.Client
	limiter *RateLimiter
	log     *zap.Logger

	// injected for tests
	now      func() time.Time
	cooldown func(ctx context.Context) error

	cacheMu      sync.Mutex
	allBreaches  []RawBreach
	allFetchedAt time.Time
}

// NewClient builds a feed client. The rate limiter is shared with any other
// feed consumer so the inter-request interval holds process-wide.
func NewClient(cfg config.HIBPConfig, limiter *RateLimiter, log *zap.Logger) *Client {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("hibp-api-key", cfg.APIKey).
		SetHeader("user-agent", cfg.UserAgent)

	// Separate client: the API key must never reach the pwned-range host.
	pwned := resty.New().
		SetBaseURL(cfg.PwnedURL).
		SetTimeout(cfg.Timeout).
		SetHeader("user-agent", cfg.UserAgent)

	return &Client{
		rest:    rest,
		pwned:   pwned,
		limiter: limiter,
		log:     log,
		now:     time.Now,
		cooldown: func(ctx context.Context) error {
			return sleepCtx(ctx, rateLimitCooldown)
		},
	}
}

// Lookup returns all breaches for an identity value. Not-found is an empty
// result; unauthorized is a fatal configuration error; a second rate-limit
// response after the cooldown retry surfaces as ErrRateLimited.
func (c *Client) Lookup(ctx context.Context, identityValue string) ([]RawBreach, error) {
	var breaches []RawBreach
	path := "/breachedaccount/" + identityValue + "?truncateResponse=false"

	resp, err := c.get(ctx, path, &breaches)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return breaches, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("breach feed rejected API key: %w", sentinel.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("breach feed still throttling after cooldown: %w", sentinel.ErrRateLimited)
	default:
		return nil, fmt.Errorf("breach feed error: status %d", resp.StatusCode())
	}
}

// LookupAll returns the full breach catalogue, served from a 24h in-memory
// cache after the first successful fetch.
func (c *Client) LookupAll(ctx context.Context) ([]RawBreach, error) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.allBreaches != nil && c.now().Sub(c.allFetchedAt) < allBreachesTTL {
		return c.allBreaches, nil
	}

	var breaches []RawBreach
	resp, err := c.get(ctx, "/breaches", &breaches)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("breach catalogue error: status %d", resp.StatusCode())
	}

	c.allBreaches = breaches
	c.allFetchedAt = c.now()
	c.log.Info("refreshed breach catalogue cache", zap.Int("breaches", len(breaches)))
	return breaches, nil
}

// CheckLeakedSecret reports how many times a secret appears in the leaked
// password corpus. Only the first five characters of the SHA-1 hash ever
// leave the process (k-anonymity); the suffix is matched locally.
func (c *Client) CheckLeakedSecret(ctx context.Context, secret string) (int, error) {
	sum := sha1.Sum([]byte(secret))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := c.pwned.R().SetContext(ctx).Get("/range/" + prefix)
	feedLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("pwned range request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("pwned range error: status %d", resp.StatusCode())
	}

	for _, line := range strings.Split(resp.String(), "\n") {
		hashSuffix, countStr, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		if hashSuffix == suffix {
			count, err := strconv.Atoi(countStr)
			if err != nil {
				return 0, fmt.Errorf("parse pwned count: %w", err)
			}
			return count, nil
		}
	}
	return 0, nil
}

// get performs a rate-limited GET with one cooldown retry on 429.
func (c *Client) get(ctx context.Context, path string, out any) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.rest.R().SetContext(ctx).SetResult(out).Get(path)
	feedLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("breach feed request: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		c.log.Warn("breach feed rate limited, cooling down before single retry")
		if err := c.cooldown(ctx); err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start = time.Now()
		resp, err = c.rest.R().SetContext(ctx).SetResult(out).Get(path)
		feedLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("breach feed retry request: %w", err)
		}
	}

	return resp, nil
}

// Normalize converts a raw feed breach into the internal form, parsing the
// breach date and dropping unused metadata.
func Normalize(raw RawBreach) Breach {
	b := Breach{
		Name:         raw.Name,
		Domain:       raw.Domain,
		PwnCount:     raw.PwnCount,
		DataClasses:  raw.DataClasses,
		IsVerified:   raw.IsVerified,
		IsFabricated: raw.IsFabricated,
		IsSensitive:  raw.IsSensitive,
	}
	if raw.BreachDate != "" {
		if parsed, err := time.Parse("2006-01-02", raw.BreachDate); err == nil {
			b.BreachDate = &parsed
		}
	}
	return b
}
