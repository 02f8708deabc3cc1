package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"breachshield/internal/alerts"
	"breachshield/internal/breach"
	"breachshield/internal/queue"
	"breachshield/internal/user"
)

type fakeMailer struct {
	digests []alerts.DigestSummary
	err     error
}

func (m *fakeMailer) SendBreachAlert(context.Context, string, alerts.BreachAlert) error {
	return nil
}

func (m *fakeMailer) SendDigest(_ context.Context, _ string, digest alerts.DigestSummary) error {
	if m.err != nil {
		return m.err
	}
	m.digests = append(m.digests, digest)
	return nil
}

type fakeSummarizer struct {
	totals     []int
	severities map[string]int
	exposed    []string
}

func (f *fakeSummarizer) RiskSummary(_ context.Context, total int, severityCounts map[string]int, mostExposed []string) string {
	f.totals = append(f.totals, total)
	f.severities = severityCounts
	f.exposed = mostExposed
	return "posture summary"
}

type digestFixture struct {
	service    *Service
	users      *user.MemoryStore
	breaches   *breach.MemoryStore
	mailer     *fakeMailer
	summarizer *fakeSummarizer
	userID     uuid.UUID
	identityID uuid.UUID
}

func newDigestFixture(t *testing.T) *digestFixture {
	t.Helper()
	users := user.NewMemoryStore()
	breaches := breach.NewMemoryStore()
	mailer := &fakeMailer{}
	summarizer := &fakeSummarizer{}

	userID := uuid.New()
	users.Put(&user.User{ID: userID, Username: "ada", Email: "ada@example.com", Active: true})

	identityID := uuid.New()
	breaches.LinkIdentity(identityID, userID)

	return &digestFixture{
		service:    NewService(users, breaches, summarizer, mailer, zap.NewNop()),
		users:      users,
		breaches:   breaches,
		mailer:     mailer,
		summarizer: summarizer,
		userID:     userID,
		identityID: identityID,
	}
}

func (f *digestFixture) seedEvent(t *testing.T, name, severity string, score int, detectedAt time.Time, classes ...string) {
	t.Helper()
	require.NoError(t, f.breaches.Create(context.Background(), &breach.Event{
		ID:            uuid.New(),
		IdentityID:    f.identityID,
		Name:          name,
		DetectedAt:    detectedAt,
		DataClasses:   classes,
		Severity:      severity,
		SeverityScore: score,
	}))
}

func TestDigestSendsAggregatedSummary(t *testing.T) {
	f := newDigestFixture(t)
	now := time.Now().UTC()
	f.seedEvent(t, "OldLeak", "MEDIUM", 8, now.Add(-30*24*time.Hour), "Email addresses")
	f.seedEvent(t, "FreshLeak", "CRITICAL", 40, now.Add(-time.Hour), "Passwords", "Email addresses")

	outcome := f.service.DigestUser(context.Background(), f.userID)
	require.Equal(t, queue.StatusSuccess, outcome.Status)

	require.Len(t, f.mailer.digests, 1)
	digest := f.mailer.digests[0]
	assert.Equal(t, 1, digest.TotalMonitored)
	assert.Equal(t, 2, digest.TotalBreaches)
	assert.Equal(t, 1, digest.NewThisWeek)
	assert.Equal(t, 40, digest.RiskScore)
	assert.Equal(t, "posture summary", digest.RiskText)

	assert.Equal(t, []int{2}, f.summarizer.totals)
	assert.Equal(t, map[string]int{"MEDIUM": 1, "CRITICAL": 1}, f.summarizer.severities)
	// Email addresses appears twice, Passwords once.
	assert.Equal(t, []string{"Email addresses", "Passwords"}, f.summarizer.exposed)
}

func TestDigestSkipsRiskSummaryWithoutBreaches(t *testing.T) {
	f := newDigestFixture(t)

	outcome := f.service.DigestUser(context.Background(), f.userID)
	require.Equal(t, queue.StatusSuccess, outcome.Status)

	require.Len(t, f.mailer.digests, 1)
	assert.Empty(t, f.mailer.digests[0].RiskText)
	assert.Empty(t, f.summarizer.totals)
}

func TestDigestUnknownUserIsBenign(t *testing.T) {
	f := newDigestFixture(t)

	outcome := f.service.DigestUser(context.Background(), uuid.New())
	assert.Equal(t, queue.StatusSuccess, outcome.Status)
	assert.Empty(t, f.mailer.digests)
}

func TestDigestInactiveUserIsBenign(t *testing.T) {
	f := newDigestFixture(t)
	inactive := uuid.New()
	f.users.Put(&user.User{ID: inactive, Username: "bob", Email: "bob@example.com", Active: false})

	outcome := f.service.DigestUser(context.Background(), inactive)
	assert.Equal(t, queue.StatusSuccess, outcome.Status)
	assert.Empty(t, f.mailer.digests)
}

func TestDigestUserWithNoIdentitiesSkipped(t *testing.T) {
	f := newDigestFixture(t)
	bare := uuid.New()
	f.users.Put(&user.User{ID: bare, Username: "eve", Email: "eve@example.com", Active: true})

	outcome := f.service.DigestUser(context.Background(), bare)
	assert.Equal(t, queue.StatusSuccess, outcome.Status)
	assert.Empty(t, f.mailer.digests)
}

func TestDigestSendFailureRetries(t *testing.T) {
	f := newDigestFixture(t)
	f.mailer.err = errors.New("sendgrid down")

	outcome := f.service.DigestUser(context.Background(), f.userID)
	assert.Equal(t, queue.StatusRetrying, outcome.Status)
}
