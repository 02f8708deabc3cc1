package digest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"breachshield/internal/alerts"
	"breachshield/internal/breach"
	"breachshield/internal/queue"
	"breachshield/internal/user"
	"breachshield/pkg/platform/sentinel"
)

// window is the lookback used for the "new this week" digest figure.
const window = 7 * 24 * time.Hour

// mostExposedLimit caps how many data classes feed the risk summary prompt.
const mostExposedLimit = 3

// Summarizer produces the cross-breach posture text. Implemented by the
// remediation advisor.
type Summarizer interface {
	RiskSummary(ctx context.Context, totalBreaches int, severityCounts map[string]int, mostExposed []string) string
}

// Service compiles and sends the weekly security digest for one user.
type Service struct {
	users      user.Store
	breaches   breach.Store
	summarizer Summarizer
	mailer     alerts.Mailer
	log        *zap.Logger
	now        func() time.Time
}

func NewService(users user.Store, breaches breach.Store, summarizer Summarizer, mailer alerts.Mailer, log *zap.Logger) *Service {
	return &Service{
		users:      users,
		breaches:   breaches,
		summarizer: summarizer,
		mailer:     mailer,
		log:        log,
		now:        time.Now,
	}
}

// HandleJob adapts the service to the queue.
func (s *Service) HandleJob(ctx context.Context, job queue.Job) queue.Outcome {
	var payload queue.DigestPayload
	if err := job.Decode(&payload); err != nil {
		return queue.Fail(err.Error())
	}
	return s.DigestUser(ctx, payload.UserID)
}

// DigestUser builds and sends one user's weekly summary. Users who vanished,
// deactivated, or monitor nothing are benign no-ops.
func (s *Service) DigestUser(ctx context.Context, userID uuid.UUID) queue.Outcome {
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return queue.Success()
		}
		return queue.Retry(fmt.Sprintf("load user: %v", err))
	}
	if !owner.Active {
		return queue.Success()
	}

	since := s.now().UTC().Add(-window)
	agg, err := s.breaches.AggregateForUser(ctx, userID, since)
	if err != nil {
		return queue.Retry(fmt.Sprintf("aggregate breaches: %v", err))
	}
	if agg.TotalMonitored == 0 {
		s.log.Info("user monitors nothing, skipping digest", zap.String("user_id", userID.String()))
		return queue.Success()
	}

	summary := alerts.DigestSummary{
		TotalMonitored: agg.TotalMonitored,
		TotalBreaches:  agg.TotalBreaches,
		NewThisWeek:    agg.NewSince,
		RiskScore:      agg.MaxScore,
	}
	if agg.TotalBreaches > 0 {
		severityCounts, mostExposed, err := s.exposure(ctx, userID)
		if err != nil {
			return queue.Retry(err.Error())
		}
		summary.RiskText = s.summarizer.RiskSummary(ctx, agg.TotalBreaches, severityCounts, mostExposed)
	}

	if err := s.mailer.SendDigest(ctx, owner.Email, summary); err != nil {
		return queue.Retry(fmt.Sprintf("send digest: %v", err))
	}

	s.log.Info("digest sent",
		zap.String("user_id", userID.String()),
		zap.Int("total_breaches", agg.TotalBreaches),
		zap.Int("new_this_week", agg.NewSince))
	return queue.Success()
}

// exposure derives the severity breakdown and the most frequently exposed
// data classes across the user's events.
func (s *Service) exposure(ctx context.Context, userID uuid.UUID) (map[string]int, []string, error) {
	events, err := s.breaches.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list breaches: %w", err)
	}

	severityCounts := make(map[string]int)
	classCounts := make(map[string]int)
	for _, event := range events {
		severityCounts[event.Severity]++
		for _, class := range event.DataClasses {
			classCounts[class]++
		}
	}

	classes := make([]string, 0, len(classCounts))
	for class := range classCounts {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classCounts[classes[i]] != classCounts[classes[j]] {
			return classCounts[classes[i]] > classCounts[classes[j]]
		}
		return classes[i] < classes[j]
	})
	if len(classes) > mostExposedLimit {
		classes = classes[:mostExposedLimit]
	}
	return severityCounts, classes, nil
}
