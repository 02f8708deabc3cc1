package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the pipeline.
// Component-local instruments (feed latency, cache hit counters) live next
// to the code that observes them.
type Metrics struct {
	ScansStarted   prometheus.Counter
	ScansCompleted *prometheus.CounterVec
	BreachesFound  prometheus.Counter
	AlertsSent     *prometheus.CounterVec
	JobsProcessed  *prometheus.CounterVec
}

// New creates and registers all shared Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ScansStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "breachshield_scans_started_total",
			Help: "Total number of identity scans started",
		}),
		ScansCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "breachshield_scans_completed_total",
			Help: "Identity scans by terminal outcome",
		}, []string{"outcome"}),
		BreachesFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "breachshield_breaches_found_total",
			Help: "New breach events created by ingestion",
		}),
		AlertsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "breachshield_alerts_total",
			Help: "Alert delivery attempts by channel and status",
		}, []string{"channel", "status"}),
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "breachshield_jobs_processed_total",
			Help: "Queue jobs by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}
