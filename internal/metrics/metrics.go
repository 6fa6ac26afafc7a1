// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/resolve"
)

// Metrics records resolver and tessellation activity. It implements
// resolve.Observer and territory.Observer.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	resolved      *prometheus.CounterVec
	layerDuration *prometheus.HistogramVec
	layerCells    *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugbymap_cache_hits_total",
			Help: "Lookups answered from the cache",
		}, []string{"stage"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugbymap_cache_misses_total",
			Help: "Lookups that needed a network call",
		}, []string{"stage"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugbymap_attempts_total",
			Help: "Network attempts by outcome",
		}, []string{"stage", "outcome"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rugbymap_resolved_total",
			Help: "Entities finished by final state",
		}, []string{"stage", "state"}),
		layerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rugbymap_layer_duration_ms",
			Help:    "Territory layer computation time in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"grouping"}),
		layerCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rugbymap_layer_cells",
			Help: "Cells in the most recent computation of a layer",
		}, []string{"grouping"}),
	}
	m.registry.MustRegister(m.cacheHits, m.cacheMisses, m.attempts, m.resolved, m.layerDuration, m.layerCells)
	return m
}

func (m *Metrics) CacheHit(stage domain.Stage) {
	m.cacheHits.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) CacheMiss(stage domain.Stage) {
	m.cacheMisses.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) Attempt(stage domain.Stage, outcome domain.Outcome) {
	m.attempts.WithLabelValues(string(stage), string(outcome)).Inc()
}

func (m *Metrics) Resolved(stage domain.Stage, state resolve.State) {
	m.resolved.WithLabelValues(string(stage), state.String()).Inc()
}

func (m *Metrics) LayerComputed(grouping string, elapsed time.Duration, cells int) {
	m.layerDuration.WithLabelValues(grouping).Observe(float64(elapsed.Milliseconds()))
	m.layerCells.WithLabelValues(grouping).Set(float64(cells))
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
