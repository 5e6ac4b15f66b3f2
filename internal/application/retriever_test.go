package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
	"github.com/uov-ai/assistant/internal/ports"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
	lastIn string
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastIn = text
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

type fakeSearcher struct {
	hits          []ports.SearchHit
	err           error
	calls         int
	lastLimit     int
	lastThreshold float64
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, limit int, threshold float64) ([]ports.SearchHit, error) {
	f.calls++
	f.lastLimit = limit
	f.lastThreshold = threshold
	return f.hits, f.err
}

func (f *fakeSearcher) Health(context.Context) bool { return true }

func newTestRetriever(embedder ports.Embedder, searcher ports.VectorSearcher) *Retriever {
	return NewRetriever(embedder, searcher, 10, 0.5, zap.NewNop(), noop.NewTracerProvider().Tracer("test"))
}

func TestRetriever_AppliesDefaultsForNonPositiveParams(t *testing.T) {
	// Given a retriever configured with defaults 10 / 0.5
	searcher := &fakeSearcher{}
	retriever := newTestRetriever(&fakeEmbedder{vector: []float32{0.1}}, searcher)

	// When retrieving with zero values
	_, err := retriever.Retrieve(context.Background(), "question", 0, 0)

	// Then the configured defaults are used
	require.NoError(t, err)
	assert.Equal(t, 10, searcher.lastLimit, "zero topK should fall back to default")
	assert.Equal(t, 0.5, searcher.lastThreshold, "zero threshold should fall back to default")
}

func TestRetriever_ZeroHitsIsNotAnError(t *testing.T) {
	retriever := newTestRetriever(&fakeEmbedder{vector: []float32{0.1}}, &fakeSearcher{})

	items, err := retriever.Retrieve(context.Background(), "question", 5, 0.5)

	require.NoError(t, err, "empty retrieval is a normal outcome")
	assert.Empty(t, items)
}

func TestRetriever_WrapsEmbeddingFailure(t *testing.T) {
	retriever := newTestRetriever(&fakeEmbedder{err: errors.New("connection refused")}, &fakeSearcher{})

	_, err := retriever.Retrieve(context.Background(), "question", 5, 0.5)

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream, "embedding failures should be classified")
	assert.Equal(t, domain.CapabilityEmbedding, upstream.Capability)
}

func TestRetriever_WrapsSearchFailure(t *testing.T) {
	retriever := newTestRetriever(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeSearcher{err: errors.New("unavailable")})

	_, err := retriever.Retrieve(context.Background(), "question", 5, 0.5)

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream, "search failures should be classified")
	assert.Equal(t, domain.CapabilityVectorSearch, upstream.Capability)
}

func TestExtractCitations_DeduplicatesOnSourceAndPage(t *testing.T) {
	// Given evidence spanning duplicate (source, page) pairs in ranked order
	items := []domain.EvidenceItem{
		{Score: 0.9, Metadata: map[string]any{"source_file": "a.pdf", "page": 1}},
		{Score: 0.8, Metadata: map[string]any{"source_file": "a.pdf", "page": 1, "section": "Other"}},
		{Score: 0.7, Metadata: map[string]any{"source_file": "a.pdf", "page": 2}},
		{Score: 0.6, Metadata: map[string]any{"source_file": "b.pdf"}},
	}

	// When extracting citations
	citations := ExtractCitations(items)

	// Then duplicates collapse and first-seen order is kept
	require.Len(t, citations, 3, "same source and page should deduplicate even across sections")
	assert.Equal(t, "a.pdf", citations[0].Source)
	require.NotNil(t, citations[0].Page)
	assert.Equal(t, 1, *citations[0].Page)
	assert.Equal(t, 0.9, citations[0].Score, "first-seen entry carries the best score")
	assert.Equal(t, "a.pdf", citations[1].Source)
	assert.Equal(t, 2, *citations[1].Page)
	assert.Equal(t, "b.pdf", citations[2].Source)
	assert.Nil(t, citations[2].Page)
}

func TestExtractCitations_MissingPageIsDistinctFromAnyPage(t *testing.T) {
	items := []domain.EvidenceItem{
		{Score: 0.9, Metadata: map[string]any{"source_file": "a.pdf", "page": 0}},
		{Score: 0.8, Metadata: map[string]any{"source_file": "a.pdf"}},
	}

	citations := ExtractCitations(items)

	require.Len(t, citations, 2, "page 0 and absent page must not collide")
}

func TestFormatContext_RendersNumberedLabels(t *testing.T) {
	items := []domain.EvidenceItem{
		{
			Text: "Admissions open in March.",
			Metadata: map[string]any{
				"source_file": "handbook.pdf",
				"page":        4,
				"section":     "Admissions",
			},
		},
		{
			Text:     "Contact the office.",
			Metadata: map[string]any{"source_file": "notice.txt"},
		},
	}

	got := FormatContext(items)

	want := "[1] handbook.pdf (Page 4) - Admissions\nAdmissions open in March.\n" +
		"\n" +
		"[2] notice.txt\nContact the office.\n"
	assert.Equal(t, want, got, "context block format is a prompt contract")
}

func TestFormatContext_EmptyEvidence(t *testing.T) {
	assert.Empty(t, FormatContext(nil), "no evidence renders an empty block")
}
