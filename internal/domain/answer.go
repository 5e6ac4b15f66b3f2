// Package domain contains the core types for retrieval-augmented question
// answering: retrieved evidence, deduplicated citations, confidence levels,
// and the final answer shape returned to callers.
package domain

// Confidence is the qualitative reliability label attached to an answer,
// derived purely from retrieval statistics.
type Confidence string

const (
	// ConfidenceHigh indicates strong similarity backed by several passages.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium indicates moderate similarity with some corroboration.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow indicates weak or insufficient supporting evidence.
	ConfidenceLow Confidence = "low"
)

// EstimateConfidence derives a confidence label from the average retrieval
// score and the number of retrieved passages. Both factors must clear their
// threshold: high similarity on a single passage is not high confidence.
// Callers must special-case count == 0 to ConfidenceLow before averaging;
// the rule is undefined for zero evidence.
func EstimateConfidence(avgScore float64, count int) Confidence {
	switch {
	case avgScore >= 0.7 && count >= 3:
		return ConfidenceHigh
	case avgScore >= 0.5 && count >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// EvidenceItem is one passage returned by the vector search, scored by
// similarity to the query. Metadata is an open mapping because source
// documents carry heterogeneous keys; only "source_file" is guaranteed
// by the ingestion contract.
type EvidenceItem struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// SourceFile returns the originating file name, or "Unknown" when the
// metadata is missing it.
func (e EvidenceItem) SourceFile() string {
	return metadataString(e.Metadata, "source_file", "Unknown")
}

// Title returns the document title, or "Unknown" when absent.
func (e EvidenceItem) Title() string {
	return metadataString(e.Metadata, "title", "Unknown")
}

// Section returns the section name, or "" when absent.
func (e EvidenceItem) Section() string {
	return metadataString(e.Metadata, "section", "")
}

// Page returns the page number and whether one is present. Numeric metadata
// may arrive as int, int64, or float64 depending on the payload codec.
func (e EvidenceItem) Page() (int, bool) {
	v, ok := e.Metadata["page"]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ToCitation converts the evidence item into a user-facing citation.
func (e EvidenceItem) ToCitation() Citation {
	c := Citation{
		Source:  e.SourceFile(),
		Title:   e.Title(),
		Section: e.Section(),
		Score:   e.Score,
	}
	if page, ok := e.Page(); ok {
		c.Page = &page
	}
	return c
}

// Citation is a deduplicated reference to a source document. Within one
// retrieval outcome every (Source, Page) pair is unique, and citations keep
// the first-seen order of the score-ranked evidence, so the first citation
// is always the most relevant source.
type Citation struct {
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	Page    *int    `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// RetrievalOutcome bundles the evidence, citations, and derived statistics
// for one retrieval pass. Computed once per request and never mutated.
type RetrievalOutcome struct {
	Items      []EvidenceItem
	Citations  []Citation
	Confidence Confidence
	AvgScore   float64
}

// NewRetrievalOutcome computes the average score and confidence for a set of
// retrieved items. An empty item slice yields ConfidenceLow and a zero
// average without dividing by zero.
func NewRetrievalOutcome(items []EvidenceItem, citations []Citation) RetrievalOutcome {
	outcome := RetrievalOutcome{
		Items:      items,
		Citations:  citations,
		Confidence: ConfidenceLow,
	}
	if len(items) == 0 {
		return outcome
	}

	var total float64
	for _, item := range items {
		total += item.Score
	}
	outcome.AvgScore = total / float64(len(items))
	outcome.Confidence = EstimateConfidence(outcome.AvgScore, len(items))
	return outcome
}

// AnswerResult is the unit returned to callers and stored in the response
// cache. AvgRetrievalScore and Confidence are zeroed only when
// ChunksRetrieved is zero.
type AnswerResult struct {
	Answer             string     `json:"answer"`
	Citations          []Citation `json:"citations"`
	ChunksRetrieved    int        `json:"chunks_retrieved"`
	Confidence         Confidence `json:"confidence"`
	AvgRetrievalScore  float64    `json:"avg_retrieval_score,omitempty"`
	IsIdentityQuestion bool       `json:"is_identity_question,omitempty"`
}

func metadataString(metadata map[string]any, key, fallback string) string {
	if v, ok := metadata[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
