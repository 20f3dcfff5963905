package logger

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestTransitionTotal counts request status transitions by outcome
	RequestTransitionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bypassguard_request_transition_total",
			Help: "Total number of bypass request status transitions",
		},
		[]string{"to", "trigger"},
	)

	// TransitionConflictTotal counts validation attempts lost to a concurrent writer
	TransitionConflictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bypassguard_transition_conflict_total",
			Help: "Total number of transitions rejected by the status precondition",
		},
	)

	// SweepRunTotal counts scheduled job runs by job and result
	SweepRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bypassguard_sweep_run_total",
			Help: "Total number of scheduled sweep runs",
		},
		[]string{"job", "result"},
	)

	// NotificationTotal counts outbound notification attempts by result
	NotificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bypassguard_notification_total",
			Help: "Total number of outbound notification attempts",
		},
		[]string{"result"}, // "sent", "failed", "skipped", "dropped"
	)

	// DatabaseQueryDuration measures database query latency
	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bypassguard_database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RequestsByStatus tracks the request count by status
	RequestsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bypassguard_requests_by_status",
			Help: "Number of bypass requests by status",
		},
		[]string{"status"},
	)
)

// InitMetrics registers Prometheus metrics
func InitMetrics() {
	prometheus.MustRegister(RequestTransitionTotal)
	prometheus.MustRegister(TransitionConflictTotal)
	prometheus.MustRegister(SweepRunTotal)
	prometheus.MustRegister(NotificationTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
	prometheus.MustRegister(RequestsByStatus)
}

// MetricsHandler returns HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
