package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateConfidence_HighRequiresBothThresholds(t *testing.T) {
	// Given scores and counts around the high boundary
	// Then both thresholds must be met for high confidence
	assert.Equal(t, ConfidenceHigh, EstimateConfidence(0.70, 3), "boundary score and count should be high")
	assert.Equal(t, ConfidenceHigh, EstimateConfidence(0.95, 10), "strong evidence should be high")

	assert.Equal(t, ConfidenceMedium, EstimateConfidence(0.69, 3), "score just below 0.7 should drop to medium")
	assert.Equal(t, ConfidenceMedium, EstimateConfidence(0.80, 2), "high score with only two passages should be medium")
}

func TestEstimateConfidence_MediumRequiresBothThresholds(t *testing.T) {
	assert.Equal(t, ConfidenceMedium, EstimateConfidence(0.50, 2), "boundary values should be medium")
	assert.Equal(t, ConfidenceLow, EstimateConfidence(0.49, 5), "score below 0.5 should be low regardless of count")
	assert.Equal(t, ConfidenceLow, EstimateConfidence(0.90, 1), "single passage should never exceed low without corroboration")
}

func TestNewRetrievalOutcome_ComputesAverageAndConfidence(t *testing.T) {
	// Given three items with known scores
	items := []EvidenceItem{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.7},
	}

	// When computing the outcome
	outcome := NewRetrievalOutcome(items, nil)

	// Then the average and confidence follow from the scores
	assert.InDelta(t, 0.8, outcome.AvgScore, 1e-9, "average should be exact mean")
	assert.Equal(t, ConfidenceHigh, outcome.Confidence, "avg 0.8 over 3 items is high")
}

func TestNewRetrievalOutcome_EmptyIsLowWithZeroAverage(t *testing.T) {
	outcome := NewRetrievalOutcome(nil, nil)

	assert.Equal(t, ConfidenceLow, outcome.Confidence, "no evidence must be low confidence")
	assert.Zero(t, outcome.AvgScore, "no evidence must not divide by zero")
}

func TestEvidenceItem_MetadataAccessors(t *testing.T) {
	// Given an item with full metadata
	item := EvidenceItem{
		Score: 0.85,
		Metadata: map[string]any{
			"source_file": "handbook.pdf",
			"title":       "Faculty Handbook",
			"section":     "Admissions",
			"page":        float64(4), // JSON decoding yields float64
		},
	}

	assert.Equal(t, "handbook.pdf", item.SourceFile())
	assert.Equal(t, "Faculty Handbook", item.Title())
	assert.Equal(t, "Admissions", item.Section())

	page, ok := item.Page()
	require.True(t, ok, "page should be present")
	assert.Equal(t, 4, page)
}

func TestEvidenceItem_MissingMetadataDefaults(t *testing.T) {
	item := EvidenceItem{Metadata: map[string]any{}}

	assert.Equal(t, "Unknown", item.SourceFile(), "missing source defaults to Unknown")
	assert.Equal(t, "Unknown", item.Title(), "missing title defaults to Unknown")
	assert.Empty(t, item.Section(), "missing section is empty")

	_, ok := item.Page()
	assert.False(t, ok, "missing page reports absent")
}

func TestEvidenceItem_ToCitation(t *testing.T) {
	item := EvidenceItem{
		Score: 0.9,
		Metadata: map[string]any{
			"source_file": "handbook.pdf",
			"page":        int64(7),
		},
	}

	citation := item.ToCitation()

	assert.Equal(t, "handbook.pdf", citation.Source)
	require.NotNil(t, citation.Page, "page pointer should be set")
	assert.Equal(t, 7, *citation.Page)
	assert.Equal(t, 0.9, citation.Score)
}

func TestEvidenceItem_ToCitationWithoutPage(t *testing.T) {
	item := EvidenceItem{Metadata: map[string]any{"source_file": "notice.txt"}}

	citation := item.ToCitation()

	assert.Nil(t, citation.Page, "absent page should stay nil, not zero")
}
