package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromRegistry holds the Prometheus collectors exported by the service
type PromRegistry struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	Requests        *prometheus.CounterVec

	Evaluations      *prometheus.CounterVec
	EvaluationScore  *prometheus.HistogramVec
	AfflictionTotals *prometheus.CounterVec
	ModuleScore      *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RateLimitBlocks *prometheus.CounterVec
	BatchSize       prometheus.Histogram
}

// NewPromRegistry creates a private registry with every collector
// registered. A private registry keeps parallel tests independent.
func NewPromRegistry() *PromRegistry {
	r := &PromRegistry{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synastry_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "status"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synastry_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synastry_evaluations_total",
				Help: "Scored pairs by evaluation kind and gender orientation",
			},
			[]string{"kind", "orientation"},
		),

		EvaluationScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synastry_evaluation_percent",
				Help:    "Distribution of final compatibility percentages",
				Buckets: prometheus.LinearBuckets(10, 10, 9),
			},
			[]string{"kind"},
		),

		AfflictionTotals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synastry_afflictions_total",
				Help: "Pairs with an affliction penalty by base (single or mutual)",
			},
			[]string{"base"},
		),

		ModuleScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synastry_module_normalized_score",
				Help:    "Normalized sub-model scores",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
			},
			[]string{"module"},
		),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synastry_cache_hits_total",
			Help: "Response cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synastry_cache_misses_total",
			Help: "Response cache misses",
		}),

		RateLimitBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synastry_rate_limit_blocks_total",
				Help: "Requests rejected by the rate limiter by scope",
			},
			[]string{"scope"},
		),

		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "synastry_batch_candidates",
			Help:    "Candidates per batch request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}

	r.registry.MustRegister(
		r.RequestDuration,
		r.Requests,
		r.Evaluations,
		r.EvaluationScore,
		r.AfflictionTotals,
		r.ModuleScore,
		r.CacheHits,
		r.CacheMisses,
		r.RateLimitBlocks,
		r.BatchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry
func (r *PromRegistry) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the scrape handler for this registry
func (r *PromRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request
func (r *PromRegistry) ObserveRequest(route, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	r.RequestDuration.WithLabelValues(route, code).Observe(duration.Seconds())
	r.Requests.WithLabelValues(route, method, code).Inc()
}

// ObserveModule records a sub-model score
func (r *PromRegistry) ObserveModule(module string, normalized float64) {
	r.ModuleScore.WithLabelValues(module).Observe(normalized)
}

// ObserveEvaluation records one scored pair. base is the penalty base, zero
// when the pair was not penalized.
func (r *PromRegistry) ObserveEvaluation(kind, orientation string, percent, base int, mutualBase int) {
	r.Evaluations.WithLabelValues(kind, orientation).Inc()
	r.EvaluationScore.WithLabelValues(kind).Observe(float64(percent))
	switch {
	case base == 0:
	case base == mutualBase:
		r.AfflictionTotals.WithLabelValues("mutual").Inc()
	default:
		r.AfflictionTotals.WithLabelValues("single").Inc()
	}
}

// IncrementCacheHit satisfies the cache metrics interface
func (r *PromRegistry) IncrementCacheHit() { r.CacheHits.Inc() }

// IncrementCacheMiss satisfies the cache metrics interface
func (r *PromRegistry) IncrementCacheMiss() { r.CacheMisses.Inc() }
