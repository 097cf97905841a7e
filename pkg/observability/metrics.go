// Package observability provides Prometheus metrics and the metrics
// endpoint for monitoring the parley orchestrator.
package observability

import "github.com/prometheus/client_golang/prometheus"

// TurnBuckets defines histogram buckets for turn processing latencies,
// ranging from 1ms to 30s.
var TurnBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

var (
	// TurnsTotal counts processed turns by terminal status.
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_turns_total",
			Help: "Processed turns by terminal status",
		},
		[]string{"status"},
	)

	// TurnDuration records end-to-end turn processing time in seconds.
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_turn_duration_seconds",
			Help:    "Turn processing duration",
			Buckets: TurnBuckets,
		},
	)

	// SessionsActive tracks the number of live session contexts.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_sessions_active",
			Help: "Live session contexts",
		},
	)

	// PolicyViolationsTotal counts policy violations by rule and direction.
	PolicyViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_policy_violations_total",
			Help: "Policy violations",
		},
		[]string{"rule", "direction"},
	)

	// IntentDetectionsTotal counts detections by top-ranked intent.
	IntentDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_intent_detections_total",
			Help: "Intent detections",
		},
		[]string{"intent"},
	)

	// BusPublishedTotal counts events accepted by the bus per topic.
	BusPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_bus_published_total",
			Help: "Events published",
		},
		[]string{"topic"},
	)

	// BusDeliveredTotal counts successful handler deliveries.
	BusDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_bus_delivered_total",
			Help: "Events delivered",
		},
		[]string{"topic", "subscriber"},
	)

	// BusHandlerErrorsTotal counts handler invocations that returned an
	// error or panicked.
	BusHandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_bus_handler_errors_total",
			Help: "Event handler failures",
		},
		[]string{"topic", "subscriber"},
	)

	// StoreRetriesTotal counts retried persistence attempts by operation.
	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_store_retries_total",
			Help: "Retried store operations",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		TurnDuration,
		SessionsActive,
		PolicyViolationsTotal,
		IntentDetectionsTotal,
		BusPublishedTotal,
		BusDeliveredTotal,
		BusHandlerErrorsTotal,
		StoreRetriesTotal,
	)
}
