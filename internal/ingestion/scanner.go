package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"breachshield/internal/breach"
	"breachshield/internal/identity"
	"breachshield/internal/ingestion/hibp"
	"breachshield/internal/platform/metrics"
	"breachshield/internal/queue"
	"breachshield/internal/scoring"
	"breachshield/pkg/platform/sentinel"
	"breachshield/pkg/platform/tx"
)

// Feed looks up breaches for one identity value. Implemented by the HIBP
// client; tests inject fakes.
type Feed interface {
	Lookup(ctx context.Context, identityValue string) ([]hibp.RawBreach, error)
}

// Advisor resolves remediation text for a breach shape.
type Advisor interface {
	Advise(ctx context.Context, breachName string, dataClasses []string) string
}

// Scanner runs one identity through the breach feed and records every new
// exposure. All events from one scan commit atomically together with the
// identity's scan bookkeeping; dispatch jobs are enqueued only after the
// commit so alerts never reference uncommitted rows.
type Scanner struct {
	identities identity.Store
	breaches   breach.Store
	cipher     *identity.Cipher
	feed       Feed
	advisor    Advisor
	runner     tx.Runner
	enqueuer   queue.Enqueuer
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewScanner(
	identities identity.Store,
	breaches breach.Store,
	cipher *identity.Cipher,
	feed Feed,
	advisor Advisor,
	runner tx.Runner,
	enqueuer queue.Enqueuer,
	m *metrics.Metrics,
	log *zap.Logger,
) *Scanner {
	return &Scanner{
		identities: identities,
		breaches:   breaches,
		cipher:     cipher,
		feed:       feed,
		advisor:    advisor,
		runner:     runner,
		enqueuer:   enqueuer,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// HandleJob adapts the scanner to the queue.
func (s *Scanner) HandleJob(ctx context.Context, job queue.Job) queue.Outcome {
	var payload queue.ScanPayload
	if err := job.Decode(&payload); err != nil {
		return queue.Fail(err.Error())
	}
	return s.ProcessIdentity(ctx, payload.IdentityID)
}

// ProcessIdentity scans one monitored identity. Missing or deactivated
// identities are a benign no-op: deactivation between enqueue and execution
// is normal, not an error.
func (s *Scanner) ProcessIdentity(ctx context.Context, identityID uuid.UUID) queue.Outcome {
	s.metrics.ScansStarted.Inc()
	outcome := s.process(ctx, identityID)
	s.metrics.ScansCompleted.WithLabelValues(string(outcome.Status)).Inc()
	return outcome
}

func (s *Scanner) process(ctx context.Context, identityID uuid.UUID) queue.Outcome {
	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.log.Info("scan target gone, skipping", zap.String("identity_id", identityID.String()))
			return queue.Success()
		}
		return queue.Retry(fmt.Sprintf("load identity: %v", err))
	}
	if !ident.Active {
		s.log.Info("scan target deactivated, skipping", zap.String("identity_id", identityID.String()))
		return queue.Success()
	}

	value, err := s.cipher.Decrypt(ident.Encrypted)
	if err != nil {
		// Undecryptable rows stay broken across retries.
		return queue.Fail(fmt.Sprintf("decrypt identity %s: %v", ident.ID, err))
	}

	raws, err := s.feed.Lookup(ctx, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnauthorized) {
			return queue.Fail(fmt.Sprintf("feed lookup: %v", err))
		}
		return queue.Retry(fmt.Sprintf("feed lookup: %v", err))
	}

	events, err := s.stageEvents(ctx, ident, raws)
	if err != nil {
		return queue.Retry(err.Error())
	}

	scannedAt := s.now().UTC()
	err = s.runner.InTx(ctx, func(ctx context.Context) error {
		for _, event := range events {
			if err := s.breaches.Create(ctx, event); err != nil {
				return fmt.Errorf("create breach event %s: %w", event.Name, err)
			}
		}
		return s.identities.CommitScan(ctx, ident.ID, scannedAt)
	})
	if err != nil {
		return queue.Retry(err.Error())
	}

	s.metrics.BreachesFound.Add(float64(len(events)))
	s.log.Info("scan committed",
		zap.String("identity_id", ident.ID.String()),
		zap.String("preview", ident.Preview),
		zap.Int("reported", len(raws)),
		zap.Int("new_events", len(events)))

	// Offer every unnotified event of this identity, not just the batch that
	// just committed: a rescan then re-offers any event whose dispatch enqueue
	// was lost to an earlier failure. The dispatcher's notified claim makes
	// duplicate offers benign.
	pending, err := s.breaches.ListUnnotifiedByIdentity(ctx, ident.ID)
	if err != nil {
		return queue.Retry(fmt.Sprintf("list unnotified events: %v", err))
	}
	for _, eventID := range pending {
		if err := s.enqueuer.Enqueue(ctx, queue.NewDispatchJob(eventID)); err != nil {
			return queue.Retry(fmt.Sprintf("enqueue dispatch for event %s: %v", eventID, err))
		}
	}

	return queue.Success()
}

// stageEvents builds the event rows for every breach not yet recorded for
// this identity. Remediation advice is resolved here, outside the commit
// transaction, because advice generation can be slow.
func (s *Scanner) stageEvents(ctx context.Context, ident *identity.MonitoredIdentity, raws []hibp.RawBreach) ([]*breach.Event, error) {
	var events []*breach.Event
	for _, raw := range raws {
		known, err := s.breaches.Exists(ctx, ident.ID, raw.Name)
		if err != nil {
			return nil, fmt.Errorf("check existing event %s: %w", raw.Name, err)
		}
		if known {
			continue
		}

		normalized := hibp.Normalize(raw)
		result := scoring.Calculate(normalized.DataClasses)
		advice := s.advisor.Advise(ctx, normalized.Name, normalized.DataClasses)

		events = append(events, &breach.Event{
			ID:              uuid.New(),
			IdentityID:      ident.ID,
			Name:            normalized.Name,
			Domain:          normalized.Domain,
			BreachDate:      normalized.BreachDate,
			DetectedAt:      s.now().UTC(),
			DataClasses:     normalized.DataClasses,
			PwnCount:        normalized.PwnCount,
			Severity:        result.Label,
			SeverityScore:   result.Score,
			IsVerified:      normalized.IsVerified,
			IsFabricated:    normalized.IsFabricated,
			IsSensitive:     normalized.IsSensitive,
			RemediationText: advice,
		})
	}
	return events, nil
}
