// Package metrics provides Prometheus metrics for vitalstats.
// It tracks backend requests, cache effectiveness, dashboard sessions
// and the cache invalidation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "vitalstats"
)

// Gateway metrics track calls to the statistics backend.
var (
	// GatewayRequestsTotal counts backend requests by endpoint template and outcome.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of requests sent to the statistics backend",
		},
		[]string{"endpoint", "status"}, // status: HTTP code or "error"
	)

	// GatewayRequestLatency measures backend round trips including retries.
	GatewayRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_latency_seconds",
			Help:      "Latency of requests to the statistics backend in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
)

// Cache metrics track hit rates per key kind.
var (
	// CacheLookupsTotal counts lookups. result: hit, miss, corrupt, error
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups",
		},
		[]string{"kind", "result"},
	)

	// CacheWritesTotal counts cache writes.
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Total number of cache writes",
		},
		[]string{"kind", "status"}, // status: success, failure
	)

	// FanOutFailuresTotal counts per-state statistics fetches that degraded to an empty set.
	FanOutFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fan_out_failures_total",
			Help:      "Per-entity statistics fetches that failed during a fan-out",
		},
	)
)

// Dashboard metrics track sessions and view updates.
var (
	// ActiveSessions tracks open dashboard sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of dashboard sessions",
		},
	)

	// StaleResponsesDiscardedTotal counts loads whose filter changed before they completed.
	StaleResponsesDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_discarded_total",
			Help:      "Loads discarded because the filter changed while in flight",
		},
	)

	// ViewLoadLatency measures a full dashboard load.
	ViewLoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_load_latency_seconds",
			Help:      "Time to load a dashboard view in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"level"}, // level: estados, municipios
	)
)

// Invalidation metrics track the cache invalidation pipeline.
var (
	// InvalidationsPublishedTotal counts invalidation requests put on the queue.
	InvalidationsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_published_total",
			Help:      "Total number of cache invalidation requests published",
		},
		[]string{"scope"}, // scope: all, keys
	)

	// InvalidationsAppliedTotal counts invalidations applied by the processor.
	InvalidationsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_applied_total",
			Help:      "Total number of cache invalidation requests applied",
		},
		[]string{"scope", "result"},
	)
)

// Queue metrics track message queue health.
var (
	// QueueDepth tracks the current number of messages in the in-memory queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of messages in the queue",
		},
	)

	// QueuePublishLatency measures time to publish a message to the queue.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)

// Storage metrics track the persistent cache backends.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: postgres, redis; operation: get, put, delete, clear
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"}, // status: success, failure
	)
)
