// Package ports defines the interfaces between the answer orchestration
// core and its external collaborators: the embedding capability, the vector
// search capability, the generative capability, the response cache, and
// supporting infrastructure like metrics and chat history persistence.
package ports

import (
	"context"
	"time"

	"github.com/uov-ai/assistant/internal/domain"
)

// Embedder converts text into vectors comparable under cosine similarity.
//
// Queries and passages are embedded with different fixed text markers
// prepended before encoding. This asymmetry is a protocol contract with the
// embedding model, not an implementation detail: using the wrong marker
// silently degrades retrieval quality instead of erroring.
type Embedder interface {
	// EmbedQuery embeds a user query with the query marker.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedPassages embeds document passages with the passage marker,
	// preserving input order in the returned vectors.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchHit is one raw result from the vector index, pre-ranked by the
// index in descending similarity order.
type SearchHit struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// VectorSearcher queries an external vector index.
type VectorSearcher interface {
	// Search returns at most limit hits scoring at or above
	// scoreThreshold, ranked descending by similarity. Zero hits is a
	// normal outcome, not an error.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]SearchHit, error)

	// Health reports whether the index is reachable.
	Health(ctx context.Context) bool
}

// Prompt is the structured input for the generative capability: a system
// instruction embedding the retrieved context and guardrail policy, plus
// the user's question.
type Prompt struct {
	System string
	User   string
}

// LLMClient abstracts the generative capability. Temperature and token
// limits are fixed at client construction, not per call.
type LLMClient interface {
	// Complete generates the full answer text for a prompt.
	Complete(ctx context.Context, prompt Prompt) (string, error)

	// Stream generates the answer incrementally, invoking emit for each
	// text fragment in order. Concatenating all fragments yields the same
	// text Complete would return. A non-nil error from emit stops
	// generation and is returned.
	Stream(ctx context.Context, prompt Prompt, emit func(fragment string) error) error

	// GetModel returns the model identifier, for logging.
	GetModel() string
}

// AnswerCache stores previously computed answers keyed by a normalized form
// of the question. Implementations enforce the write policy themselves:
// results with no answer text, and low-confidence fallback answers, are
// never stored. The cache is strictly a performance optimization; entries
// may vanish at any time with no correctness impact.
type AnswerCache interface {
	// Get returns the cached result for a question, if present and not
	// expired. Expiry is checked at read time.
	Get(ctx context.Context, question string) (domain.AnswerResult, bool)

	// Put stores a result unless the write policy excludes it.
	// Storage failures are absorbed; the cache is best-effort.
	Put(ctx context.Context, question string, result domain.AnswerResult)

	// Clear removes all entries.
	Clear(ctx context.Context)
}

// MetricsCollector records operational metrics. Implementations integrate
// with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric, for events like cache
	// hits and misses.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
