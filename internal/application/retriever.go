// Package application contains the answer orchestration core: retrieval,
// guardrail classification, prompt assembly, and the pipeline that composes
// them into synchronous and streaming answers.
package application

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
	"github.com/uov-ai/assistant/internal/ports"
)

// Retriever embeds a question, searches the vector index, and shapes the
// hits into scored evidence with deduplicated citations.
type Retriever struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher

	topK           int
	scoreThreshold float64

	logger *zap.Logger
	tracer trace.Tracer
}

// NewRetriever builds a Retriever. topK and scoreThreshold become the
// defaults applied when a caller passes non-positive values to Retrieve.
func NewRetriever(
	embedder ports.Embedder,
	searcher ports.VectorSearcher,
	topK int,
	scoreThreshold float64,
	logger *zap.Logger,
	tracer trace.Tracer,
) *Retriever {
	if topK <= 0 {
		topK = 10
	}
	if scoreThreshold <= 0 {
		scoreThreshold = 0.5
	}
	return &Retriever{
		embedder:       embedder,
		searcher:       searcher,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		logger:         logger,
		tracer:         tracer,
	}
}

// Retrieve embeds the question and returns the top matching passages as
// evidence items, ranked descending by similarity. Non-positive topK or
// scoreThreshold fall back to the configured defaults. Zero results is a
// normal outcome; only upstream failures return an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, scoreThreshold float64) ([]domain.EvidenceItem, error) {
	ctx, span := r.tracer.Start(ctx, "retriever.retrieve")
	defer span.End()

	if topK <= 0 {
		topK = r.topK
	}
	if scoreThreshold <= 0 {
		scoreThreshold = r.scoreThreshold
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.NewUpstreamError(domain.CapabilityEmbedding, err)
	}

	hits, err := r.searcher.Search(ctx, vector, topK, scoreThreshold)
	if err != nil {
		return nil, domain.NewUpstreamError(domain.CapabilityVectorSearch, err)
	}

	items := make([]domain.EvidenceItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, domain.EvidenceItem{
			ID:       hit.ID,
			Text:     hit.Text,
			Score:    hit.Score,
			Metadata: hit.Metadata,
		})
	}

	span.SetAttributes(
		attribute.Int("retrieval.hits", len(items)),
		attribute.Int("retrieval.top_k", topK),
	)
	r.logger.Debug("retrieval complete",
		zap.Int("hits", len(items)),
		zap.Int("top_k", topK),
		zap.Float64("score_threshold", scoreThreshold))

	return items, nil
}

// RetrieveWithCitations runs Retrieve and derives the citation list and
// confidence statistics in one pass.
func (r *Retriever) RetrieveWithCitations(ctx context.Context, question string, topK int, scoreThreshold float64) (domain.RetrievalOutcome, error) {
	items, err := r.Retrieve(ctx, question, topK, scoreThreshold)
	if err != nil {
		return domain.RetrievalOutcome{}, err
	}
	return domain.NewRetrievalOutcome(items, ExtractCitations(items)), nil
}

// citationKey identifies a unique source reference. A missing page is
// distinct from any real page number.
type citationKey struct {
	source string
	page   int
}

const noPage = -1

// ExtractCitations deduplicates evidence into citations on the
// (source, page) pair, keeping first-seen order. Because evidence arrives
// ranked by score, the first citation always points at the most relevant
// source. Section differences do not split citations.
func ExtractCitations(items []domain.EvidenceItem) []domain.Citation {
	seen := make(map[citationKey]struct{}, len(items))
	citations := make([]domain.Citation, 0, len(items))

	for _, item := range items {
		key := citationKey{source: item.SourceFile(), page: noPage}
		if page, ok := item.Page(); ok {
			key.page = page
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		citations = append(citations, item.ToCitation())
	}
	return citations
}

// FormatContext renders evidence items into the numbered context block the
// prompt template embeds. Each entry carries a 1-based index, the source
// file, the page when known, and the section when present:
//
//	[1] handbook.pdf (Page 4) - Admissions
//	passage text
//
// Entries are separated by blank lines. The numbering lines up with the
// citation indices shown to users.
func FormatContext(items []domain.EvidenceItem) string {
	parts := make([]string, 0, len(items))
	for i, item := range items {
		label := fmt.Sprintf("[%d] %s", i+1, item.SourceFile())
		if page, ok := item.Page(); ok {
			label += fmt.Sprintf(" (Page %d)", page)
		}
		if section := item.Section(); section != "" {
			label += " - " + section
		}
		parts = append(parts, label+"\n"+item.Text+"\n")
	}
	return strings.Join(parts, "\n")
}
