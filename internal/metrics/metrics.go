// Package metrics exposes Prometheus counters for lookups, calculations and
// advisories on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/nutrition"
)

const namespace = "directdose"

// Metrics holds the service collectors
type Metrics struct {
	registry       *prometheus.Registry
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	calculations   *prometheus.CounterVec
	advisories     *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry, together with the
// Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nutrition_lookups_total",
			Help:      "Food item lookups by outcome.",
		}, []string{"outcome"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nutrition_lookup_duration_seconds",
			Help:      "Duration of single food item lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Dosing calculations by kind.",
		}, []string{"kind"}),
		advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisories_total",
			Help:      "Out-of-range advisories by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lookups,
		m.lookupDuration,
		m.calculations,
		m.advisories,
	)
	return m
}

// ObserveLookup records one item lookup. It matches nutrition.Observer.
func (m *Metrics) ObserveLookup(outcome nutrition.Outcome, elapsed time.Duration) {
	m.lookups.WithLabelValues(string(outcome)).Inc()
	m.lookupDuration.Observe(elapsed.Seconds())
}

// Calculation counts a dosing calculation such as "bolus" or "icr_day"
func (m *Metrics) Calculation(kind string) {
	m.calculations.WithLabelValues(kind).Inc()
}

// Advisory counts a raised advisory
func (m *Metrics) Advisory(advisory dosing.Advisory) {
	m.advisories.WithLabelValues(string(advisory.Kind)).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
