package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"breachshield/internal/identity"
	"breachshield/internal/user"
)

func TestJobRoundTrip(t *testing.T) {
	identityID := uuid.New()
	job := NewScanJob(identityID)

	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, KindScanIdentity, decoded.Kind)
	assert.Equal(t, 1, decoded.Attempt)

	var payload ScanPayload
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, identityID, payload.IdentityID)
}

func TestMaxAttemptsPerKind(t *testing.T) {
	assert.Equal(t, 3, MaxAttempts(KindScanIdentity))
	assert.Equal(t, 2, MaxAttempts(KindDispatchAlert))
	assert.Equal(t, 1, MaxAttempts(KindDigestUser))
	assert.Equal(t, 1, MaxAttempts(Kind("unknown")))
}

func TestNextAttemptBumpsUntilExhausted(t *testing.T) {
	job := NewScanJob(uuid.New())

	job, exhausted := NextAttempt(job)
	require.False(t, exhausted)
	assert.Equal(t, 2, job.Attempt)

	job, exhausted = NextAttempt(job)
	require.False(t, exhausted)
	assert.Equal(t, 3, job.Attempt)

	_, exhausted = NextAttempt(job)
	assert.True(t, exhausted)
}

func TestNextAttemptSingleShotKinds(t *testing.T) {
	job := NewDigestJob(uuid.New())
	_, exhausted := NextAttempt(job)
	assert.True(t, exhausted, "digest jobs never retry")
}

func TestMuxRoutesByKind(t *testing.T) {
	mux := NewMux()
	var handled Kind
	mux.Register(KindScanIdentity, HandlerFunc(func(_ context.Context, job Job) Outcome {
		handled = job.Kind
		return Success()
	}))

	out := mux.dispatch(context.Background(), NewScanJob(uuid.New()))
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, KindScanIdentity, handled)
}

func TestMuxUnknownKindFails(t *testing.T) {
	out := NewMux().dispatch(context.Background(), NewDigestJob(uuid.New()))
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "no handler")
}

func TestSchedulerSweepFansOutPerActiveIdentity(t *testing.T) {
	ctx := context.Background()
	identities := identity.NewMemoryStore()
	q := NewMemoryQueue()

	active1 := seedIdentity(t, identities, true)
	active2 := seedIdentity(t, identities, true)
	seedIdentity(t, identities, false)

	s := NewScheduler(identities, user.NewMemoryStore(), q, zap.NewNop(), time.Hour, time.Hour)
	queued, err := s.EnqueueSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	jobs := q.Jobs()
	require.Len(t, jobs, 2)

	var targets []uuid.UUID
	for _, job := range jobs {
		assert.Equal(t, KindScanIdentity, job.Kind)
		var payload ScanPayload
		require.NoError(t, job.Decode(&payload))
		targets = append(targets, payload.IdentityID)
	}
	assert.ElementsMatch(t, []uuid.UUID{active1, active2}, targets)
}

func TestSchedulerDigestFansOutPerActiveUser(t *testing.T) {
	ctx := context.Background()
	users := user.NewMemoryStore()
	q := NewMemoryQueue()

	activeUser := uuid.New()
	users.Put(&user.User{ID: activeUser, Username: "ada", Email: "ada@example.com", Active: true})
	users.Put(&user.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com", Active: false})

	s := NewScheduler(identity.NewMemoryStore(), users, q, zap.NewNop(), time.Hour, time.Hour)
	queued, err := s.EnqueueDigests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, KindDigestUser, jobs[0].Kind)

	var payload DigestPayload
	require.NoError(t, jobs[0].Decode(&payload))
	assert.Equal(t, activeUser, payload.UserID)
}

func seedIdentity(t *testing.T, store *identity.MemoryStore, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.Create(context.Background(), &identity.MonitoredIdentity{
		ID:      id,
		UserID:  uuid.New(),
		Hash:    id.String(), // unique per seeded identity
		Active:  active,
		AddedAt: time.Now(),
	}))
	return id
}
