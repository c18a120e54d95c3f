package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the screener's Prometheus collectors. A nil *Registry is
// valid and records nothing, so components can run without telemetry.
type Registry struct {
	reg *prometheus.Registry

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	ProviderRetries  *prometheus.CounterVec
	RateLimitWait    prometheus.Histogram

	SymbolsProcessed *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
}

// NewRegistry creates a registry with all screener metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_cache_hits_total",
				Help: "Total number of response cache hits by ttl category",
			},
			[]string{"category"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_cache_misses_total",
				Help: "Total number of response cache misses by ttl category",
			},
			[]string{"category"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_provider_requests_total",
				Help: "Upstream provider HTTP attempts by data type and outcome",
			},
			[]string{"data_type", "outcome"},
		),

		ProviderRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_provider_retries_total",
				Help: "Retries scheduled after transient provider failures",
			},
			[]string{"reason"},
		),

		RateLimitWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_rate_limit_wait_seconds",
				Help:    "Time spent waiting for an outbound call slot",
				Buckets: []float64{0, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		SymbolsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_symbols_processed_total",
				Help: "Symbols processed by strategy and outcome (qualified, disqualified, failed)",
			},
			[]string{"strategy", "outcome"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_run_duration_seconds",
				Help:    "Wall time of a complete screening run",
				Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"strategy"},
		),
	}

	r.reg.MustRegister(
		r.CacheHits,
		r.CacheMisses,
		r.ProviderRequests,
		r.ProviderRetries,
		r.RateLimitWait,
		r.SymbolsProcessed,
		r.RunDuration,
	)

	return r
}

// Handler exposes the registry over HTTP
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) CacheHit(category string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(category).Inc()
}

func (r *Registry) CacheMiss(category string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(category).Inc()
}

func (r *Registry) ProviderRequest(dataType, outcome string) {
	if r == nil {
		return
	}
	r.ProviderRequests.WithLabelValues(dataType, outcome).Inc()
}

func (r *Registry) ProviderRetry(reason string) {
	if r == nil {
		return
	}
	r.ProviderRetries.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveRateLimitWait(d time.Duration) {
	if r == nil {
		return
	}
	r.RateLimitWait.Observe(d.Seconds())
}

func (r *Registry) SymbolProcessed(strategy, outcome string) {
	if r == nil {
		return
	}
	r.SymbolsProcessed.WithLabelValues(strategy, outcome).Inc()
}

func (r *Registry) ObserveRun(strategy string, d time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(strategy).Observe(d.Seconds())
}
