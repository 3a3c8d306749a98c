package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionOperations counts admission engine operations by outcome (ok or an error code).
	AdmissionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partyfinder_admission_operations_total",
			Help: "Total number of admission engine operations",
		},
		[]string{"operation", "result"},
	)

	// OutboxEvents counts relayed outbox events by result (sent|retry|dead).
	OutboxEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partyfinder_outbox_events_total",
			Help: "Total number of outbox events processed by the relay",
		},
		[]string{"result"},
	)

	// MaintenanceRuns counts scheduled maintenance job runs by result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partyfinder_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// OpenSlots tracks open slots across recruiting posts.
	OpenSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partyfinder_open_slots",
			Help: "Number of open slots on recruiting party posts",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partyfinder_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveAdmission records the outcome of an admission operation.
func ObserveAdmission(operation, result string) {
	if result == "" {
		result = "ok"
	}
	AdmissionOperations.WithLabelValues(operation, result).Inc()
}
