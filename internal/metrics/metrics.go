package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics are registered lazily on the MetricsManager registry the first
// time a request is recorded with business metrics enabled
var (
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge
	RequestOutcomesTotal  *prometheus.CounterVec

	httpOnce        sync.Once
	businessEnabled atomic.Bool
	systemEnabled   atomic.Bool
)

// Enable switches the business (HTTP, store, conflict) and system metric families on or off
func Enable(business, system bool) {
	businessEnabled.Store(business)
	systemEnabled.Store(system)
}

// BusinessEnabled reports whether request and store metrics are recorded
func BusinessEnabled() bool {
	return businessEnabled.Load()
}

func initializeHTTPMetrics() {
	httpOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPActiveConnections = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		)

		RequestOutcomesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardbook_request_outcomes_total",
				Help: "Requests by error taxonomy outcome",
			},
			[]string{"outcome"}, // "ok", "validation", "not_found", "already_exists", "conflict", "internal"
		)

		GetInstance().registry.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPActiveConnections,
			RequestOutcomesTotal,
		)
	})
}

// RecordHTTPRequest records metrics for an HTTP request. endpoint is the route
// template, never the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !BusinessEnabled() {
		return
	}
	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordOutcome counts a request by its error kind
func RecordOutcome(outcome string) {
	if !BusinessEnabled() {
		return
	}
	initializeHTTPMetrics()

	RequestOutcomesTotal.WithLabelValues(outcome).Inc()
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	if !BusinessEnabled() {
		return
	}
	initializeHTTPMetrics()

	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	if !BusinessEnabled() {
		return
	}
	initializeHTTPMetrics()

	HTTPActiveConnections.Dec()
}
