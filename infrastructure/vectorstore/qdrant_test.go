package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID_Variants(t *testing.T) {
	assert.Equal(t, "abc-123", pointID(qdrant.NewIDUUID("abc-123")))
	assert.Equal(t, "42", pointID(qdrant.NewIDNum(42)))
	assert.Empty(t, pointID(nil))
}

func TestValueToAny_ScalarKinds(t *testing.T) {
	assert.Equal(t, "hello", valueToAny(qdrant.NewValueString("hello")))
	assert.Equal(t, int64(7), valueToAny(qdrant.NewValueInt(7)))
	assert.Equal(t, 0.85, valueToAny(qdrant.NewValueDouble(0.85)))
	assert.Equal(t, true, valueToAny(qdrant.NewValueBool(true)))
	assert.Nil(t, valueToAny(nil))
}

func TestSplitPayload_SeparatesTextFromMetadata(t *testing.T) {
	// Given a payload with the text key and document metadata
	payload := qdrant.NewValueMap(map[string]any{
		"text":        "Admissions open in March.",
		"source_file": "handbook.pdf",
		"page":        4,
		"section":     "Admissions",
	})

	// When splitting
	text, metadata := splitPayload(payload)

	// Then text is extracted and everything else stays as metadata
	assert.Equal(t, "Admissions open in March.", text)
	assert.Equal(t, "handbook.pdf", metadata["source_file"])
	assert.Equal(t, int64(4), metadata["page"])
	assert.Equal(t, "Admissions", metadata["section"])
	assert.NotContains(t, metadata, "text", "text must not leak into metadata")
}

func TestSplitPayload_MissingText(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{"source_file": "notice.txt"})

	text, metadata := splitPayload(payload)

	assert.Empty(t, text)
	require.Contains(t, metadata, "source_file")
}
