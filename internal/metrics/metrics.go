package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

const namespace = "petgw"

// Metrics holds the gateway's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Jobs            *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	IgnoredSchemes  prometheus.Counter
	EngineDuration  *prometheus.HistogramVec
	JobRows         prometheus.Histogram
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	ContextRecorded prometheus.Counter
	Identifiers     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Anonymization jobs by request shape and outcome.",
		}, []string{"shape", "outcome"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Rejected or failed requests by error kind.",
		}, []string{"kind"}),
		IgnoredSchemes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_schemes_total",
			Help:      "Privacy schemes skipped because they were not recognized.",
		}),
		EngineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Time spent in the optimization engine.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"outcome"}),
		JobRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_rows",
			Help:      "Rows in the main table of each job.",
			Buckets:   prometheus.ExponentialBuckets(2, 4, 8),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		ContextRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_recorded_total",
			Help:      "Objects newly added to the context store.",
		}),
		Identifiers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "direct_identifiers_total",
			Help:      "Request values that look like direct identifiers, by entity type.",
		}, []string{"entity_type"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveJob records the result of one anonymization request
func (m *Metrics) ObserveJob(shape string, result *anonymizer.Result, err error) {
	if err != nil {
		kind := string(anonymizer.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
		m.Jobs.WithLabelValues(shape, "error").Inc()
		m.Errors.WithLabelValues(kind).Inc()
		return
	}

	outcome := "not_found"
	if result.OptimumFound {
		outcome = "optimal"
	}
	m.Jobs.WithLabelValues(shape, outcome).Inc()
	m.JobRows.Observe(float64(len(result.Rows)))
	m.IgnoredSchemes.Add(float64(len(result.Ignored)))
}

// RegisterGaugeFunc exposes a value computed at scrape time
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// InstrumentEngine times every Solve call of inner
func (m *Metrics) InstrumentEngine(inner anonymizer.Engine) anonymizer.Engine {
	return anonymizer.EngineFunc(func(ctx context.Context, job *anonymizer.Job) (*anonymizer.Outcome, error) {
		start := time.Now()
		outcome, err := inner.Solve(ctx, job)

		label := "error"
		switch {
		case err != nil, outcome == nil:
		case outcome.OptimumFound:
			label = "optimal"
		default:
			label = "not_found"
		}
		m.EngineDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		return outcome, err
	})
}
