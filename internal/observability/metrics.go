package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "suitability"

// Metrics holds the Prometheus counters, histograms, and gauges for the suitability service.
type Metrics struct {
	RefreshRequests  *prometheus.CounterVec // labels: kind={refresh,recompute}
	ResultsApplied   prometheus.Counter
	ResultsDiscarded prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Compute metrics.
	ComputeDuration prometheus.Histogram
	CellsScored     prometheus.Counter

	// Upstream raster and weather metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source, outcome={success,error,canceled}
	UpstreamRetries  *prometheus.CounterVec   // labels: source
	UpstreamDuration *prometheus.HistogramVec // labels: source
	CacheLookups     *prometheus.CounterVec   // labels: source, result={hit,miss}
	Fallbacks        *prometheus.CounterVec   // labels: layer={soil,landcover,weather}
	WeatherEnabled   prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_requests_total",
			Help:      "Suitability computations requested, by kind.",
		}, []string{"kind"}),
		ResultsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_applied_total",
			Help:      "Results accepted as the latest grid.",
		}),
		ResultsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_discarded_total",
			Help:      "Results dropped because a newer request was already applied.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the compute worker is active, 0 when shut down.",
		}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Duration of one scoring pass over a grid.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CellsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_scored_total",
			Help:      "Grid cells scored by the compute worker.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream fetch retries after transient failures.",
		}, []string{"source"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream fetch duration in seconds, including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Grid cache lookups by source and result.",
		}, []string{"source", "result"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Layers replaced with synthetic data after a fetch failure.",
		}, []string{"layer"}),
		WeatherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_enabled",
			Help:      "1 when live weather summaries are enabled, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRequests,
		m.ResultsApplied,
		m.ResultsDiscarded,
		m.PipelineRunning,
		m.ComputeDuration,
		m.CellsScored,
		m.UpstreamRequests,
		m.UpstreamRetries,
		m.UpstreamDuration,
		m.CacheLookups,
		m.Fallbacks,
		m.WeatherEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
