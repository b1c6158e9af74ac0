package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModerationDecisionsTotal counts moderation outcomes by decided status
	// and by who decided it (ai or admin).
	ModerationDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_moderation_decisions_total",
		Help: "Total number of moderation decisions by status and actor kind",
	}, []string{"status", "decided_by"})

	// ClassifierFailuresTotal counts classifier calls that failed or timed out
	// and fell back to pending review.
	ClassifierFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_classifier_failures_total",
		Help: "Total number of classifier calls that failed and defaulted to pending",
	}, []string{"reason"})

	// ClassifierLatency records outbound classifier call latency.
	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsdesk_classifier_latency_seconds",
		Help:    "Classifier call latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SideEffectRetriesTotal counts retried side-effect deliveries by kind.
	SideEffectRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_side_effect_retries_total",
		Help: "Total number of side-effect delivery retries by kind",
	}, []string{"kind"})

	// SideEffectDropsTotal counts side effects abandoned after exhausting retries.
	SideEffectDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_side_effect_drops_total",
		Help: "Total number of side effects dropped after exhausting retries",
	}, []string{"kind"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsdesk_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsdesk_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client's
	// send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// RecordDecision increments the moderation decision counter.
func RecordDecision(status, decidedBy string) {
	ModerationDecisionsTotal.WithLabelValues(status, decidedBy).Inc()
}

// RecordClassifierFailure increments the classifier failure counter.
func RecordClassifierFailure(reason string) {
	ClassifierFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveClassifierCall records the latency of one classifier round trip.
func ObserveClassifierCall(start time.Time) {
	ClassifierLatency.Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
