package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teachly_http_requests_total",
			Help: "Total number of handled HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration observes request latency per method and path.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teachly_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RealtimeConnections tracks currently open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teachly_realtime_connections",
			Help: "Number of open realtime websocket connections",
		},
	)

	// MessagesSent counts persisted direct messages.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teachly_messages_sent_total",
			Help: "Total number of direct messages persisted",
		},
	)

	// MessageIndexRetries counts sequencer retries after unique-constraint conflicts.
	MessageIndexRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teachly_message_index_retries_total",
			Help: "Total number of message index assignment retries",
		},
	)

	// DemandTransitions counts teaching demand state transitions by outcome
	// (sent|accepted|cancelled).
	DemandTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teachly_demand_transitions_total",
			Help: "Total number of teaching demand state transitions",
		},
		[]string{"transition"},
	)
)
