package llm

import (
	"context"
	"strings"
	"time"

	"github.com/uov-ai/assistant/internal/ports"
)

// metricsLLM records latency, request counts, and token usage for outbound
// provider calls.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects per-request metrics
// for monitoring LLM usage, performance, and cost.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
		}
	}
}

// DoRequest executes the request while recording latency, status, and
// token usage.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := m.labels(ctx, err)
	labels["mode"] = "sync"

	if m.collector != nil {
		m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("llm_requests_total", 1, labels)

		if err == nil {
			labels["token_type"] = "input"
			m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), labels)

			labels["token_type"] = "output"
			m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), labels)
		}
	}

	return response, tokensIn, tokensOut, err
}

// DoStream executes the stream while recording latency and request status.
// Token usage is estimated from the emitted text since streamed responses
// do not always report usage.
func (m *metricsLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, emit func(string) error) error {
	start := time.Now()
	var emitted int

	err := m.next.DoStream(ctx, prompt, opts, func(fragment string) error {
		emitted += len(fragment)
		return emit(fragment)
	})

	labels := m.labels(ctx, err)
	labels["mode"] = "stream"

	if m.collector != nil {
		m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("llm_requests_total", 1, labels)

		if err == nil {
			labels["token_type"] = "output"
			m.collector.RecordCounter("llm_tokens_total", float64(emitted)/4.0, labels)
		}
	}

	return err
}

func (m *metricsLLM) labels(ctx context.Context, err error) map[string]string {
	labels := map[string]string{
		"provider": m.extractProvider(),
		"model":    m.next.GetModel(),
		"status":   "success",
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			labels["status"] = "timeout"
		} else {
			labels["status"] = "error"
		}
	}
	return labels
}

func (m *metricsLLM) extractProvider() string {
	model := m.next.GetModel()
	switch {
	case strings.Contains(model, "gpt"), strings.Contains(model, "llama"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
