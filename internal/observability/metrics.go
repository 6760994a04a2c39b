package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngagementOps counts gateway operations by kind and outcome.
	EngagementOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristat_engagement_ops_total",
		Help: "Total number of engagement gateway operations by kind and outcome",
	}, []string{"operation", "outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veristat_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReconcileDriftDetected counts reconcile passes that found a projection
	// row disagreeing with the event store, by drifted field.
	ReconcileDriftDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristat_reconcile_drift_detected_total",
		Help: "Total number of drifted UserStats fields detected by the reconciler",
	}, []string{"field"})

	// ScanTrackingDeferred counts scan events parked on the pending queue
	// because their tracking write failed.
	ScanTrackingDeferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veristat_scan_tracking_deferred_total",
		Help: "Total number of scan events queued for later reconciliation",
	})

	// TransientRetries counts storage retries by operation.
	TransientRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristat_transient_retries_total",
		Help: "Total number of transient storage errors that were retried",
	}, []string{"operation"})
)

// RecordOp increments the engagement operation counter.
func RecordOp(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	EngagementOps.WithLabelValues(operation, outcome).Inc()
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
