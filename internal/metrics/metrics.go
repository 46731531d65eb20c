// Package metrics exposes Prometheus instrumentation for pings, items,
// resolver sources and batches.
package metrics

import (
	"net/http"
	"time"

	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seo_pinger"

// Ping outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds all seo-pinger collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PingsTotal           *prometheus.CounterVec
	PingDuration         *prometheus.HistogramVec
	ItemsTotal           *prometheus.CounterVec
	ResolverSourcesTotal *prometheus.CounterVec
	BatchesActive        prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_total",
			Help:      "Ping attempts by outcome",
		}, []string{"outcome"}),
		PingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ping_duration_seconds",
			Help:      "Time until a ping endpoint answered or failed",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Submitted URLs by final status",
		}, []string{"status"}),
		ResolverSourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_source_total",
			Help:      "Endpoint lists served by source (catalog, suggested, fallback)",
		}, []string{"source"}),
		BatchesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_active",
			Help:      "Batches currently running",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePing records one ping attempt.
func (m *Metrics) ObservePing(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PingsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.PingDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// ItemFinished records the terminal status of an item.
func (m *Metrics) ItemFinished(status domain.ItemStatus) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(string(status)).Inc()
}

// ResolverSource records where an endpoint list came from.
func (m *Metrics) ResolverSource(source string) {
	if m == nil {
		return
	}
	m.ResolverSourcesTotal.WithLabelValues(source).Inc()
}

// BatchStarted increments the active batch gauge.
func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.BatchesActive.Inc()
}

// BatchFinished decrements the active batch gauge.
func (m *Metrics) BatchFinished() {
	if m == nil {
		return
	}
	m.BatchesActive.Dec()
}
