package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	concurrencyConflicts   *prometheus.CounterVec
	indexRepairsTotal      *prometheus.CounterVec

	storeOnce sync.Once
)

func initializeStoreMetrics() {
	storeOnce.Do(func() {
		storeOperationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardbook_store_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"engine", "operation", "outcome"},
		)

		storeOperationDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wardbook_store_operation_duration_seconds",
				Help:    "Time spent in key-value store operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"engine", "operation"},
		)

		concurrencyConflicts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardbook_concurrency_conflicts_total",
				Help: "Conditioned writes that lost a race and surfaced or retried a conflict",
			},
			[]string{"entity", "result"}, // result: "retried", "surfaced"
		)

		indexRepairsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardbook_index_repairs_total",
				Help: "Classification keys repaired by the reconciliation sweep",
			},
			[]string{"entity"},
		)

		GetInstance().registry.MustRegister(
			storeOperationsTotal,
			storeOperationDuration,
			concurrencyConflicts,
			indexRepairsTotal,
		)
	})
}

// RecordStoreOperation records one adapter call. outcome is "ok",
// "not_found", "precondition_failed" or "error".
func RecordStoreOperation(engine, operation, outcome string, startTime time.Time) {
	if !BusinessEnabled() {
		return
	}
	initializeStoreMetrics()

	storeOperationsTotal.WithLabelValues(engine, operation, outcome).Inc()
	storeOperationDuration.WithLabelValues(engine, operation).Observe(time.Since(startTime).Seconds())
}

// RecordConflict counts a failed optimistic-concurrency precondition
func RecordConflict(entity, result string) {
	if !BusinessEnabled() {
		return
	}
	initializeStoreMetrics()

	concurrencyConflicts.WithLabelValues(entity, result).Inc()
}

// RecordIndexRepairs counts classification keys rewritten by a sweep
func RecordIndexRepairs(entity string, n int) {
	if !BusinessEnabled() || n == 0 {
		return
	}
	initializeStoreMetrics()

	indexRepairsTotal.WithLabelValues(entity).Add(float64(n))
}
