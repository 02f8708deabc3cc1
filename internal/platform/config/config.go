package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the server and worker processes need. It is built
// once at startup from environment variables so main stays lean.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	HIBP   HIBPConfig
	Claude ClaudeConfig
	Email  EmailConfig
	SMS    SMSConfig

	// EncryptionKey protects monitored identity values at rest. 32 bytes,
	// hex or raw; validated by the identity package at wiring time.
	EncryptionKey string

	Worker WorkerConfig
}

// HIBPConfig configures the breach feed collaborator.
type HIBPConfig struct {
	APIKey      string
	BaseURL     string
	PwnedURL    string
	UserAgent   string
	MinInterval time.Duration
	Timeout     time.Duration
}

// ClaudeConfig configures the remediation text generator.
type ClaudeConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// EmailConfig configures the SendGrid channel provider.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SMSConfig configures the Twilio channel provider.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// WorkerConfig sizes the queue consumer and the periodic scheduler.
type WorkerConfig struct {
	Concurrency    int
	SweepInterval  time.Duration
	DigestInterval time.Duration
	RetryDelay     time.Duration
}

// Load builds a Config from environment variables. Missing credentials are
// configuration errors: they fail here, at startup, and are never retried.
func Load() (Config, error) {
	cfg := Config{
		Addr:          envOr("BREACHSHIELD_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      envOr("REDIS_URL", "redis://localhost:6379/0"),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		HIBP: HIBPConfig{
			APIKey:      os.Getenv("HIBP_API_KEY"),
			BaseURL:     envOr("HIBP_BASE_URL", "https://haveibeenpwned.com/api/v3"),
			PwnedURL:    envOr("HIBP_PWNED_URL", "https://api.pwnedpasswords.com"),
			UserAgent:   envOr("HIBP_USER_AGENT", "breachshield-monitor"),
			MinInterval: envDurationOr("HIBP_MIN_INTERVAL", 1600*time.Millisecond),
			Timeout:     envDurationOr("HIBP_TIMEOUT", 30*time.Second),
		},
		Claude: ClaudeConfig{
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			Model:     envOr("CLAUDE_MODEL", "claude-sonnet-4-5"),
			MaxTokens: envIntOr("CLAUDE_MAX_TOKENS", 1024),
			Timeout:   envDurationOr("CLAUDE_TIMEOUT", 60*time.Second),
		},
		Email: EmailConfig{
			APIKey:    os.Getenv("SENDGRID_API_KEY"),
			FromEmail: envOr("FROM_EMAIL", "alerts@breachshield.io"),
			FromName:  envOr("FROM_NAME", "BreachShield"),
			Timeout:   envDurationOr("SENDGRID_TIMEOUT", 15*time.Second),
		},
		SMS: SMSConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
			Timeout:    envDurationOr("TWILIO_TIMEOUT", 15*time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:    envIntOr("WORKER_CONCURRENCY", 8),
			SweepInterval:  envDurationOr("SWEEP_INTERVAL", 6*time.Hour),
			DigestInterval: envDurationOr("DIGEST_INTERVAL", 7*24*time.Hour),
			RetryDelay:     envDurationOr("JOB_RETRY_DELAY", 2*time.Minute),
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EncryptionKey == "" {
		return Config{}, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.HIBP.APIKey == "" {
		return Config{}, fmt.Errorf("HIBP_API_KEY is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
