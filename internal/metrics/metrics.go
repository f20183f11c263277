// Package metrics holds the Prometheus collectors exported on /metrics.
//
// All methods are nil-safe so components can be built without metrics in
// tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adbridge"

// Metrics is the set of adbridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	callbacks     *prometheus.CounterVec
	exchanges     *prometheus.CounterVec
	chatEvents    *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	tasksInFlight prometheus.Gauge
}

// New creates collectors registered on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oauth_callbacks_total",
				Help:      "OAuth callbacks by terminal outcome.",
			},
			[]string{"outcome"},
		),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oauth_exchanges_total",
				Help:      "Token endpoint calls by step and result.",
			},
			[]string{"step", "result"},
		),
		chatEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_events_total",
				Help:      "Inbound chat events by kind.",
			},
			[]string{"kind"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetches_total",
				Help:      "Provider data calls by operation and result.",
			},
			[]string{"operation", "result"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_fetch_duration_seconds",
				Help:      "Provider data call latency.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"operation"},
		),
		tasksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_in_flight",
				Help:      "Work items currently running on the shared scheduler.",
			},
		),
	}

	reg.MustRegister(
		m.callbacks,
		m.exchanges,
		m.chatEvents,
		m.fetches,
		m.fetchDuration,
		m.tasksInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Callback counts a terminal callback outcome.
func (m *Metrics) Callback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

// Exchange counts a token endpoint call.
func (m *Metrics) Exchange(step, result string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(step, result).Inc()
}

// ChatEvent counts an inbound chat event.
func (m *Metrics) ChatEvent(kind string) {
	if m == nil {
		return
	}
	m.chatEvents.WithLabelValues(kind).Inc()
}

// Fetch counts a provider data call and records its latency.
func (m *Metrics) Fetch(operation, result string, seconds float64) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(operation, result).Inc()
	m.fetchDuration.WithLabelValues(operation).Observe(seconds)
}

// TaskStarted and TaskFinished track scheduler occupancy.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksInFlight.Inc()
}

func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.tasksInFlight.Dec()
}
