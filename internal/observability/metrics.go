package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixctl",
			Subsystem: "run",
			Name:      "total",
			Help:      "Total fix runs by aggregate status.",
		},
		[]string{"status"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixctl",
			Subsystem: "batch",
			Name:      "total",
			Help:      "Tool batch executions by outcome.",
		},
		[]string{"tool", "status"},
	)
	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fixctl",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Tool batch execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runsTotal, batchesTotal, batchDuration)
	})
}

// RecordRun counts one completed run. Status is "ok" or "failed".
func RecordRun(status string) {
	RegisterMetrics()
	runsTotal.WithLabelValues(status).Inc()
}

// RecordBatch counts one batch execution and observes its duration.
// Status is "changed", "unchanged", or "failed".
func RecordBatch(tool, status string, duration time.Duration) {
	RegisterMetrics()
	batchesTotal.WithLabelValues(tool, status).Inc()
	batchDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}
