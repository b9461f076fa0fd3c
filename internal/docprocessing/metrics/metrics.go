// Package metrics exposes prometheus instruments for the extraction pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	coverage           *prometheus.HistogramVec
	cacheTotal         *prometheus.CounterVec
	fallbackTotal      *prometheus.CounterVec
	jobsInFlight       prometheus.Gauge
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldscan",
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Extractions by category, layout and outcome.",
		},
		[]string{"service", "category", "layout", "outcome"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldscan",
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Pipeline duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "category"},
	)
	coverage := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldscan",
			Subsystem: "extraction",
			Name:      "coverage_ratio",
			Help:      "Final coverage of the expected key set.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "category"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldscan",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldscan",
			Subsystem: "fallback",
			Name:      "calls_total",
			Help:      "Fallback collaborator calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fieldscan",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Asynchronous extraction jobs currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(extractionsTotal, extractionDuration, coverage, cacheTotal, fallbackTotal, jobsInFlight)

	return &Metrics{
		registry:           registry,
		extractionsTotal:   extractionsTotal.MustCurryWith(prometheus.Labels{"service": service}),
		extractionDuration: extractionDuration.MustCurryWith(prometheus.Labels{"service": service}).(*prometheus.HistogramVec),
		coverage:           coverage.MustCurryWith(prometheus.Labels{"service": service}).(*prometheus.HistogramVec),
		cacheTotal:         cacheTotal.MustCurryWith(prometheus.Labels{"service": service}),
		fallbackTotal:      fallbackTotal.MustCurryWith(prometheus.Labels{"service": service}),
		jobsInFlight:       jobsInFlight,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveExtraction records one finished pipeline run. outcome is one of
// "ok", "cached" or "empty".
func (m *Metrics) ObserveExtraction(category, layout, outcome string, coverage float64, d time.Duration) {
	if m == nil {
		return
	}
	if layout == "" {
		layout = "none"
	}
	m.extractionsTotal.WithLabelValues(category, layout, outcome).Inc()
	m.extractionDuration.WithLabelValues(category).Observe(d.Seconds())
	m.coverage.WithLabelValues(category).Observe(coverage)
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// FallbackCall records a collaborator call. outcome is "ok", "error" or "skipped".
func (m *Metrics) FallbackCall(outcome string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
}
