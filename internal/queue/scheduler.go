package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"breachshield/internal/identity"
	"breachshield/internal/user"
)

// Scheduler fans periodic work out into per-target jobs: one scan job per
// active identity on the sweep interval, one digest job per active user on the
// digest interval. Fan-out keeps each job small so a single slow or failing
// target cannot stall the rest of the sweep.
type Scheduler struct {
	identities identity.Store
	users      user.Store
	enqueuer   Enqueuer
	log        *zap.Logger

	sweepInterval  time.Duration
	digestInterval time.Duration
}

func NewScheduler(identities identity.Store, users user.Store, enqueuer Enqueuer, log *zap.Logger, sweepInterval, digestInterval time.Duration) *Scheduler {
	return &Scheduler{
		identities:     identities,
		users:          users,
		enqueuer:       enqueuer,
		log:            log,
		sweepInterval:  sweepInterval,
		digestInterval: digestInterval,
	}
}

// Run ticks until ctx is cancelled. Intervals are fixed at construction;
// a missed tick (previous fan-out still running) is skipped, not queued.
func (s *Scheduler) Run(ctx context.Context) {
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	digest := time.NewTicker(s.digestInterval)
	defer digest.Stop()

	s.log.Info("scheduler started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("digest_interval", s.digestInterval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if _, err := s.EnqueueSweep(ctx); err != nil {
				s.log.Error("sweep fan-out", zap.Error(err))
			}
		case <-digest.C:
			if _, err := s.EnqueueDigests(ctx); err != nil {
				s.log.Error("digest fan-out", zap.Error(err))
			}
		}
	}
}

// EnqueueSweep enqueues one scan job per active identity and returns how many
// were queued. Also invoked directly by the manual sweep endpoint.
func (s *Scheduler) EnqueueSweep(ctx context.Context) (int, error) {
	identities, err := s.identities.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active identities: %w", err)
	}

	queued := 0
	for _, ident := range identities {
		if err := s.enqueuer.Enqueue(ctx, NewScanJob(ident.ID)); err != nil {
			return queued, fmt.Errorf("enqueue scan for identity %s: %w", ident.ID, err)
		}
		queued++
	}

	s.log.Info("sweep enqueued", zap.Int("identities", queued))
	return queued, nil
}

// EnqueueDigests enqueues one digest job per active user.
func (s *Scheduler) EnqueueDigests(ctx context.Context) (int, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	queued := 0
	for _, u := range users {
		if err := s.enqueuer.Enqueue(ctx, NewDigestJob(u.ID)); err != nil {
			return queued, fmt.Errorf("enqueue digest for user %s: %w", u.ID, err)
		}
		queued++
	}

	s.log.Info("digests enqueued", zap.Int("users", queued))
	return queued, nil
}
