package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"breachshield/internal/breach"
	"breachshield/internal/identity"
	"breachshield/internal/queue"
	"breachshield/pkg/platform/sentinel"
)

// Sweeper fans a full sweep out into per-identity jobs. Implemented by the
// queue scheduler.
type Sweeper interface {
	EnqueueSweep(ctx context.Context) (int, error)
}

// Remediator resolves and invalidates advisory text. Implemented by the
// remediation advisor.
type Remediator interface {
	Advise(ctx context.Context, breachName string, dataClasses []string) string
	Invalidate(ctx context.Context, breachName string, dataClasses []string) error
}

// HealthCheck probes a dependency. nil means healthy.
type HealthCheck func(ctx context.Context) error

// Handler is the thin HTTP layer over the pipeline's admin operations.
type Handler struct {
	identities identity.Store
	events     breach.Store
	enqueuer   queue.Enqueuer
	sweeper    Sweeper
	remediator Remediator
	checks     []HealthCheck
	log        *zap.Logger
}

func NewHandler(
	identities identity.Store,
	events breach.Store,
	enqueuer queue.Enqueuer,
	sweeper Sweeper,
	remediator Remediator,
	log *zap.Logger,
	checks ...HealthCheck,
) *Handler {
	return &Handler{
		identities: identities,
		events:     events,
		enqueuer:   enqueuer,
		sweeper:    sweeper,
		remediator: remediator,
		checks:     checks,
		log:        log,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// triggerScan enqueues an on-demand scan for one monitored identity.
func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.identities.GetByID(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	job := queue.NewScanJob(id)
	if err := h.enqueuer.Enqueue(r.Context(), job); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// triggerFullSweep enqueues a scan for every active identity.
func (h *Handler) triggerFullSweep(w http.ResponseWriter, r *http.Request) {
	queued, err := h.sweeper.EnqueueSweep(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

// resendAlert re-queues alert delivery for an event, bypassing the notified
// guard.
func (h *Handler) resendAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.events.GetByID(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	job := queue.NewResendJob(id)
	if err := h.enqueuer.Enqueue(r.Context(), job); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// regenerateRemediation drops the cached advice for the event's breach shape,
// generates fresh text and persists it on the event.
func (h *Handler) regenerateRemediation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	event, err := h.events.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.remediator.Invalidate(ctx, event.Name, event.DataClasses); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		respondError(w, err)
		return
	}

	text := h.remediator.Advise(ctx, event.Name, event.DataClasses)
	if err := h.events.UpdateRemediation(ctx, event.ID, text); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"remediation_text": text})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sentinel.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, sentinel.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
