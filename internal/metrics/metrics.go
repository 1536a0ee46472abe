package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments of the trend engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	OptimizeDur     prometheus.Histogram
	GridEvaluations prometheus.Counter
	FitsTotal       *prometheus.CounterVec // labels: mode
	FitErrors       *prometheus.CounterVec // labels: mode, reason
	StaleResults    prometheus.Counter
	FetchDur        prometheus.Histogram
	CandlesFetched  prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	LastConfidence  *prometheus.GaugeVec // labels: label
	registry        *prometheus.Registry
}

// NewMetrics creates the instruments and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		OptimizeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_optimize_duration_seconds",
			Help:    "Grid optimizer latency per window",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GridEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_grid_evaluations_total",
			Help: "Total (a, b) pairs scored by the grid optimizer",
		}),
		FitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_fits_total",
			Help: "Trend bands computed (by pipeline mode)",
		}, []string{"mode"}),
		FitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_fit_errors_total",
			Help: "Trend computations that failed (by mode and reason)",
		}, []string{"mode", "reason"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_stale_results_total",
			Help: "Completed computations dropped because a newer request superseded them",
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_fetch_duration_seconds",
			Help:    "Historical candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		CandlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_candles_fetched_total",
			Help: "Candles returned by the historical data source",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_candle_cache_hits_total",
			Help: "Candle series served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_candle_cache_misses_total",
			Help: "Candle series not found in the Redis cache",
		}),
		LastConfidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trend_last_confidence_percent",
			Help: "Best-fit confidence of the latest strategy evaluation (by period label)",
		}, []string{"label"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.OptimizeDur,
		m.GridEvaluations,
		m.FitsTotal,
		m.FitErrors,
		m.StaleResults,
		m.FetchDur,
		m.CandlesFetched,
		m.CacheHits,
		m.CacheMisses,
		m.LastConfidence,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOptimize records one optimizer run.
func (m *Metrics) ObserveOptimize(d time.Duration, evaluated int) {
	if m == nil {
		return
	}
	m.OptimizeDur.Observe(d.Seconds())
	m.GridEvaluations.Add(float64(evaluated))
}

// IncFit counts a completed band for mode.
func (m *Metrics) IncFit(mode string) {
	if m == nil {
		return
	}
	m.FitsTotal.WithLabelValues(mode).Inc()
}

// IncFitError counts a failed computation for mode.
func (m *Metrics) IncFitError(mode, reason string) {
	if m == nil {
		return
	}
	m.FitErrors.WithLabelValues(mode, reason).Inc()
}

// IncStale counts a dropped late result.
func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

// ObserveFetch records one historical fetch.
func (m *Metrics) ObserveFetch(d time.Duration, candles int) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
	m.CandlesFetched.Add(float64(candles))
}

// IncCache counts a cache lookup.
func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// SetConfidence publishes the latest confidence for a period label.
func (m *Metrics) SetConfidence(label string, confidence float64) {
	if m == nil {
		return
	}
	m.LastConfidence.WithLabelValues(label).Set(confidence)
}
