package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend labels.
const (
	backendPostgres = "postgres"
	backendChromem  = "chromem"
	backendQdrant   = "qdrant"
)

var (
	// QueryDuration tracks store call latency.
	// Labels: backend, operation
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbrain",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OperationsTotal counts store calls by outcome.
	// Labels: backend, operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbrain",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	// SkippedWrites counts writes a backend could not represent, such as
	// documents without an embedding on Qdrant.
	SkippedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbrain",
			Subsystem: "store",
			Name:      "skipped_writes_total",
			Help:      "Writes dropped because the backend cannot store them",
		},
		[]string{"backend", "reason"},
	)
)

// observe records one operation. Use as: defer observe(backend, op, time.Now(), &err).
func observe(backend, op string, start time.Time, err *error) {
	QueryDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil && *err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(backend, op, result).Inc()
}
