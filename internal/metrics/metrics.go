// Package metrics holds the Prometheus collectors of the resolution pipeline.
// Collectors register with the default registry on package load and are
// served by the health server at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	RequestsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hri_requests_resolved_total",
			Help: "Total number of requests resolved",
		},
		[]string{"outcome"}, // success, failure, no_match
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hri_handler_duration_seconds",
			Help:    "Handler chain execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	AcksDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hri_acks_dispatched_total",
			Help: "Total number of acknowledgements dispatched",
		},
	)

	HandlerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hri_handler_panics_total",
			Help: "Total number of handler panics recovered",
		},
		[]string{"handler"},
	)

	// Decision metrics
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hri_decisions_total",
			Help: "Total number of decisions by verdict",
		},
		[]string{"helper", "verdict"}, // verdict: go, no_go
	)

	// Availability metrics
	AvailabilityUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hri_availability_updates_total",
			Help: "Total number of availability transitions",
		},
		[]string{"transition"}, // appeared, present, disappeared
	)

	// Reasoning metrics
	ReasoningCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hri_reasoning_calls_total",
			Help: "Total number of reasoning backend calls",
		},
		[]string{"backend", "status"},
	)

	// Serving loop metrics
	InflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hri_inflight_requests",
			Help: "Number of requests currently being resolved by the serving loop",
		},
	)
)

// RecordRequest records the outcome of one resolved request.
func RecordRequest(handler, outcome string, d time.Duration) {
	RequestsResolved.WithLabelValues(outcome).Inc()
	if handler != "" {
		HandlerDuration.WithLabelValues(handler).Observe(d.Seconds())
	}
}

// RecordDecision records a decision verdict.
func RecordDecision(helper string, goAhead bool) {
	verdict := "no_go"
	if goAhead {
		verdict = "go"
	}
	Decisions.WithLabelValues(helper, verdict).Inc()
}
