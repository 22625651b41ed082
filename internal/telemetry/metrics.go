// Package telemetry provides Prometheus instrumentation for the
// engine's breaker transitions, probe outcomes, and expiration sweeps.
// Each Metrics holds its own private *prometheus.Registry instead of
// registering on the global default, so an embedding application can
// call New more than once in tests without a MustRegister panic.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine publishes.
type Metrics struct {
	registry *prometheus.Registry

	// BreakerTransitions counts state transitions by instance and
	// from/to state (§4.2-4.4).
	BreakerTransitions *prometheus.CounterVec

	// BreakerState is a live gauge of each instance's current state
	// (0=Closed, 1=Open, 2=HalfOpen), for dashboards that don't want to
	// derive it from the transition counter.
	BreakerState *prometheus.GaugeVec

	// HalfOpenAdmissions counts half-open probe admissions and
	// rejections by instance and outcome.
	HalfOpenAdmissions *prometheus.CounterVec

	// ProbeOutcomes counts health-check probe results by detect type
	// and outcome kind (§4.5).
	ProbeOutcomes *prometheus.CounterVec

	// ProbeDuration observes probe latency in seconds by detect type.
	ProbeDuration *prometheus.HistogramVec

	// MetricExpirations counts instances removed by the metric store's
	// TTL sweep.
	MetricExpirations prometheus.Counter
}

// New builds a Metrics set registered on its own private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polaris_breaker_transitions_total",
				Help: "Total circuit breaker state transitions",
			},
			[]string{"instance", "from", "to"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "polaris_breaker_state",
				Help: "Current circuit breaker state per instance (0=Closed, 1=Open, 2=HalfOpen)",
			},
			[]string{"instance"},
		),
		HalfOpenAdmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polaris_half_open_admissions_total",
				Help: "Total half-open probe admission attempts",
			},
			[]string{"instance", "outcome"},
		),
		ProbeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polaris_probe_outcomes_total",
				Help: "Total active health-check probe outcomes",
			},
			[]string{"detect_type", "kind"},
		),
		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polaris_probe_duration_seconds",
				Help:    "Active health-check probe latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"detect_type"},
		),
		MetricExpirations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "polaris_metric_expirations_total",
				Help: "Total instances removed by the metric store's TTL sweep",
			},
		),
	}

	m.registry.MustRegister(
		m.BreakerTransitions,
		m.BreakerState,
		m.HalfOpenAdmissions,
		m.ProbeOutcomes,
		m.ProbeDuration,
		m.MetricExpirations,
	)
	return m
}

// Handler returns an http.Handler that serves this Metrics set's
// registry for scraping (§10's optional /metrics surface).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
