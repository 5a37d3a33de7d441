// Package metrics exposes Prometheus instrumentation for validation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomePassed   = "passed"
	OutcomeFailed   = "failed"
	OutcomeInput    = "input_error"
	OutcomeInternal = "internal_error"
	OutcomeRejected = "rejected"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "csvgate"
	subsystem = "validation"

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of validation runs by outcome",
		},
		[]string{"outcome"},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "findings_total",
			Help:      "Total number of failed expectations by expectation name",
		},
		[]string{"expectation"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Wall time of a validation run, loading included",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	rowsValidated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows",
			Help:      "Rows in each validated dataset",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 10),
		},
	)

	persistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "persist_failures_total",
			Help:      "Reports that could not be written to disk",
		},
	)
)

// RecordRun records one completed or failed run. expectations lists the
// names of the failed expectations, and rows is negative when no dataset
// was loaded.
func RecordRun(outcome string, expectations []string, rows int, duration time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	if rows >= 0 {
		rowsValidated.Observe(float64(rows))
	}
	for _, name := range expectations {
		findingsTotal.WithLabelValues(name).Inc()
	}
}

// RecordRejected counts a run turned away by the concurrency limiter.
func RecordRejected() {
	runsTotal.WithLabelValues(OutcomeRejected).Inc()
}

// RecordPersistFailure counts a report that could not be written.
func RecordPersistFailure() {
	persistFailures.Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
