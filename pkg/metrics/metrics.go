// Package metrics provides Prometheus collectors for the fetcher and the session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soltabs"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchTotal      *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	RefreshTicks    prometheus.Counter
	StaleRefreshes  prometheus.Counter
	HydratedTabs    prometheus.Counter
	OpenTabs        prometheus.Gauge
	PersistFailures prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "requests_total",
			Help:      "Requests to the token API by endpoint and result",
		}, []string{"endpoint", "result"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "request_duration_seconds",
			Help:      "Token API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RefreshTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_ticks_total",
			Help:      "Price refresh ticks fired for the active tab",
		}),
		StaleRefreshes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_refreshes_total",
			Help:      "Refresh results discarded because the tab was no longer active",
		}),
		HydratedTabs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "hydrated_tabs_total",
			Help:      "Persisted tabs restored at startup",
		}),
		OpenTabs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "open_tabs",
			Help:      "Number of open token tabs",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "persist_failures_total",
			Help:      "Failed writes of tab state or settings",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(endpoint, result string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(endpoint, result).Inc()
	m.FetchDuration.WithLabelValues(endpoint).Observe(seconds)
}

func (m *Metrics) IncRefreshTick() {
	if m != nil {
		m.RefreshTicks.Inc()
	}
}

func (m *Metrics) IncStaleRefresh() {
	if m != nil {
		m.StaleRefreshes.Inc()
	}
}

func (m *Metrics) AddHydrated(n int) {
	if m != nil {
		m.HydratedTabs.Add(float64(n))
	}
}

func (m *Metrics) SetOpenTabs(n int) {
	if m != nil {
		m.OpenTabs.Set(float64(n))
	}
}

func (m *Metrics) IncPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}
