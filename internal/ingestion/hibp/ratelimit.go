package hibp

import (
	"context"
	"sync"
	"time"
)

// RateLimiter serializes calls to the breach feed across all concurrently
// running scans. The feed enforces a minimum inter-request interval, so the
// limiter owns "time of last call" behind a single lock and every request
// path must go through Wait before talking to the API.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// then claims the current slot. Returns early only on context cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() {
		elapsed := r.now().Sub(r.last)
		if elapsed < r.interval {
			if err := r.sleep(ctx, r.interval-elapsed); err != nil {
				return err
			}
		}
	}
	r.last = r.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
