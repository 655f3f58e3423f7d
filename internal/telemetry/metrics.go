package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	remoteWrites    *prometheus.CounterVec
}

// NewMetrics registers the persistence metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_persistence_events_total",
			Help: "Persistence failures reported, by kind and severity",
		}, []string{"kind", "severity"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_save_attempts_total",
			Help: "Save attempts dispatched, by source and outcome",
		}, []string{"source", "outcome"}),
		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_save_attempt_duration_seconds",
			Help:    "Time from dispatch to resolution of a save attempt",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"source"}),
		remoteWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_remote_writes_total",
			Help: "Best-effort remote writes, by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncEvent(kind Kind, severity Severity) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind), string(severity)).Inc()
}

func (m *Metrics) ObserveAttempt(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, outcome).Inc()
	m.attemptDuration.WithLabelValues(source).Observe(took.Seconds())
}

func (m *Metrics) IncRemoteWrite(outcome string) {
	if m == nil {
		return
	}
	m.remoteWrites.WithLabelValues(outcome).Inc()
}
