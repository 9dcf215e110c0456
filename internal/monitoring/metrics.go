package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for pipeline and API activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ModelsNormalized   *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	EscalationDuration *prometheus.HistogramVec
	ExtractFailures    prometheus.Counter
	RecordsPersisted   prometheus.Counter
	PipelineRuns       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// NewMetrics registers a fresh set of collectors on their own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ModelsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "models_normalized_total",
			Help:      "Models normalized, by outcome (heuristic, escalated, skipped).",
		}, []string{"outcome"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "escalations_total",
			Help:      "LLM escalations, by provider and result.",
		}, []string{"provider", "result"}),
		EscalationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "laserci",
			Name:      "escalation_duration_seconds",
			Help:      "Latency of LLM escalation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		ExtractFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "extract_failures_total",
			Help:      "Raw documents that yielded no spec map.",
		}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "records_persisted_total",
			Help:      "Canonical spec records written.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs, by final status.",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "laserci",
			Name:      "http_requests_total",
			Help:      "API requests, by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.ModelsNormalized,
		m.Escalations,
		m.EscalationDuration,
		m.ExtractFailures,
		m.RecordsPersisted,
		m.PipelineRuns,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModel counts one normalized model.
func (m *Metrics) ObserveModel(outcome string) {
	if m == nil {
		return
	}
	m.ModelsNormalized.WithLabelValues(outcome).Inc()
}

// ObserveEscalation counts one escalation call and records its latency.
func (m *Metrics) ObserveEscalation(provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(provider, result).Inc()
	m.EscalationDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveExtractFailure counts one document that produced nothing.
func (m *Metrics) ObserveExtractFailure() {
	if m == nil {
		return
	}
	m.ExtractFailures.Inc()
}

// ObserveRecordPersisted counts one stored record.
func (m *Metrics) ObserveRecordPersisted() {
	if m == nil {
		return
	}
	m.RecordsPersisted.Inc()
}

// ObserveRun counts one finished pipeline run.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
