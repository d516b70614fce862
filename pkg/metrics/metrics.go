// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// StreamConnectionsActive tracks open notification channels.
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of active notification stream connections",
		},
	)

	// StreamEventsTotal tracks events emitted on notification channels.
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Total events emitted on notification streams",
		},
		[]string{"event"},
	)

	// LifecycleTransitionsTotal tracks workflow state transitions.
	LifecycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total workflow lifecycle transitions",
		},
		[]string{"action"},
	)

	// HardDeleteOutcomes tracks per-item results of hard deletes.
	HardDeleteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hard_delete_items_total",
			Help: "Per-item outcomes of bulk hard delete operations",
		},
		[]string{"outcome"},
	)

	// AccessDenialsTotal tracks evaluator denials by scope.
	AccessDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_denials_total",
			Help: "Total access evaluator denials",
		},
		[]string{"scope"},
	)
)

// IncrementStreamConnections records a newly opened stream.
func IncrementStreamConnections() {
	StreamConnectionsActive.Inc()
}

// DecrementStreamConnections records a closed stream.
func DecrementStreamConnections() {
	StreamConnectionsActive.Dec()
}
