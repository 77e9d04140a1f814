// Package metrics provides Prometheus metrics for docchat
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	UploadReady    = "ready"
	UploadDegraded = "degraded"

	ReplyOK       = "ok"
	ReplyFallback = "fallback"
)

// Metrics holds all collectors. Each instance owns its registry so tests can
// build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UploadsTotal    *prometheus.CounterVec
	RepliesTotal    *prometheus.CounterVec
	LLMDuration     prometheus.Histogram
	ActivityDropped prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docchat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_uploads_total",
				Help: "Uploaded documents by extraction outcome",
			},
			[]string{"outcome"},
		),
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_replies_total",
				Help: "Assistant replies by outcome",
			},
			[]string{"outcome"},
		),
		LLMDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docchat_llm_request_duration_seconds",
				Help:    "Duration of generative model calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
		),
		ActivityDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docchat_activity_dropped_total",
				Help: "Activity records that could not be recorded",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpload is safe to call on a nil *Metrics.
func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReply(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(outcome).Inc()
	m.LLMDuration.Observe(seconds)
}

func (m *Metrics) ObserveActivityDropped() {
	if m == nil {
		return
	}
	m.ActivityDropped.Inc()
}
