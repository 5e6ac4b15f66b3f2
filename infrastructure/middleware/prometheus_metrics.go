// Package middleware provides cross-cutting infrastructure for the
// assistant, currently the Prometheus-backed metrics collector.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uov-ai/assistant/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks answer latency, pipeline operation counts, cache
// effectiveness, and LLM token consumption.
type PrometheusMetrics struct {
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
	tokensUsed       *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics in the global Prometheus registry. Construct it once per
// process; duplicate registration panics.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		operationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_operation_duration_seconds",
				Help:    "Execution time of answer pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "mode"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_operations_total",
				Help: "Total operations performed by the answer pipeline.",
			},
			[]string{"operation", "status"},
		),
		cacheEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_cache_events_total",
				Help: "Response cache hits and misses.",
			},
			[]string{"event"},
		),
		tokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_llm_tokens_total",
				Help: "Tokens consumed by LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_llm_latency_seconds",
				Help:    "Latency of LLM provider requests.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model", "mode", "status"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assistant_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records operation execution time in a histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.operationLatency.WithLabelValues(operation, labelOr(labels, "mode", "sync")).
		Observe(duration.Seconds())
}

// RecordCounter increments the counter matching the metric name, routing
// cache and token metrics to their dedicated vectors.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "assistant_cache_events_total":
		pm.cacheEvents.WithLabelValues(labelOr(labels, "event", "unknown")).Add(value)
	case "llm_tokens_total":
		pm.tokensUsed.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	case "llm_requests_total":
		pm.operationCounter.WithLabelValues("llm_request", labelOr(labels, "status", "success")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge sets the current value of a system state gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a value, routing LLM latency observations to the
// provider-labelled histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_latency_seconds":
		pm.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "mode", "sync"),
			labelOr(labels, "status", "success"),
		).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric, labelOr(labels, "mode", "sync")).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
