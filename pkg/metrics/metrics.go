// Package metrics provides process-local observability counters for the tap
// using Prometheus metrics. Counters feed operator dashboards only; none of
// this state is persisted or consulted for sync decisions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts outbound SP-API requests by operation and HTTP status
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tap_amazon_sp",
			Name:      "api_requests_total",
			Help:      "Total SP-API requests issued",
		},
		[]string{"operation", "status"},
	)

	// APIRetries counts retried requests by operation and retry reason
	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tap_amazon_sp",
			Name:      "api_retries_total",
			Help:      "Total SP-API request retries",
		},
		[]string{"operation", "reason"},
	)

	// ThrottleWaits counts token-bucket waits by operation
	ThrottleWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tap_amazon_sp",
			Name:      "throttle_waits_total",
			Help:      "Requests that blocked on the per-operation token bucket",
		},
		[]string{"operation"},
	)

	// RequestDuration tracks request latency by operation
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tap_amazon_sp",
			Name:      "request_duration_seconds",
			Help:      "SP-API request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RecordsEmitted counts records written to the Singer stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tap_amazon_sp",
			Name:      "records_emitted_total",
			Help:      "Records emitted per stream",
		},
		[]string{"stream"},
	)
)

// Timer tracks the duration of a single operation
type Timer struct {
	operation string
	start     time.Time
}

// NewTimer starts a timer for an operation
func NewTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// Stop records the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	RequestDuration.WithLabelValues(t.operation).Observe(elapsed.Seconds())
	return elapsed
}
