package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job lifecycle metrics
	JobsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_jobs_started_total",
			Help: "Total number of reconciliation jobs started",
		},
	)

	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_jobs_completed_total",
			Help: "Total number of reconciliation jobs ended, by outcome",
		},
		[]string{"outcome"},
	)

	StableDaysAtCompletion = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steward_stable_days_at_completion",
			Help:    "Consecutive stable checks counted when a job ended",
			Buckets: prometheus.LinearBuckets(0, 1, 15),
		},
	)

	// Cycle metrics
	CyclesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_cycles_processed_total",
			Help: "Total number of reconciliation cycles processed, by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steward_cycle_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SignificantChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_significant_changes_total",
			Help: "Total number of cycles that observed a significant change",
		},
	)

	PropagationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_cache_propagation_failures_total",
			Help: "Total number of failed downstream cache propagations",
		},
	)

	// Extension metrics
	ExtensionsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_extensions_granted_total",
			Help: "Total number of monitoring window extensions granted",
		},
	)

	ExtensionDaysGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_extension_days_granted_total",
			Help: "Total days of monitoring window extension granted",
		},
	)

	// Dependency metrics
	StorageFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steward_storage_failures_total",
			Help: "Total number of storage operations that failed after retries",
		},
	)

	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions by dependency and new state",
		},
		[]string{"dependency", "state"},
	)

	AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_alerts_dispatched_total",
			Help: "Total number of alerts dispatched, by severity",
		},
		[]string{"severity"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsStarted)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(StableDaysAtCompletion)
	prometheus.MustRegister(CyclesProcessed)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(SignificantChanges)
	prometheus.MustRegister(PropagationFailures)
	prometheus.MustRegister(ExtensionsGranted)
	prometheus.MustRegister(ExtensionDaysGranted)
	prometheus.MustRegister(StorageFailures)
	prometheus.MustRegister(BreakerTransitions)
	prometheus.MustRegister(AlertsDispatched)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
