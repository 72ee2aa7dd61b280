package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide prometheus instruments. A single instance is
// installed at boot via Set and reached from leaf packages via Current.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	modelRequests *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelTokens   *prometheus.CounterVec

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec

	activeQueries prometheus.Gauge
}

var current atomic.Pointer[Metrics]

func Set(m *Metrics) { current.Store(m) }

func Current() *Metrics { return current.Load() }

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		modelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_requests_total",
			Help: "Hosted model API calls by model, endpoint and status.",
		}, []string{"model", "endpoint", "status"}),
		modelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_request_duration_seconds",
			Help:    "Hosted model API latency by endpoint.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model", "endpoint"}),
		modelTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_tokens_total",
			Help: "Total tokens consumed by hosted model API calls.",
		}, []string{"model", "endpoint"}),
		pipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Media pipeline executions by agent type, mode and outcome.",
		}, []string{"agent", "mode", "outcome"}),
		pipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Media pipeline latency by agent type.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"agent"}),
		activeQueries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "background_queries_active",
			Help: "Background crew queries currently processing.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ObserveModelRequest(model, endpoint, status string, dur time.Duration, tokens int) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.modelRequests.WithLabelValues(model, endpoint, status).Inc()
	m.modelDuration.WithLabelValues(model, endpoint).Observe(dur.Seconds())
	if tokens > 0 {
		m.modelTokens.WithLabelValues(model, endpoint).Add(float64(tokens))
	}
}

func (m *Metrics) ObservePipelineRun(agent, mode string, success bool, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.pipelineRuns.WithLabelValues(agent, mode, outcome).Inc()
	m.pipelineDuration.WithLabelValues(agent).Observe(dur.Seconds())
}

func (m *Metrics) QueryStarted() {
	if m == nil {
		return
	}
	m.activeQueries.Inc()
}

func (m *Metrics) QueryFinished() {
	if m == nil {
		return
	}
	m.activeQueries.Dec()
}
