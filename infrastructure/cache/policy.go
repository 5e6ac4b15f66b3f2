package cache

import (
	"strings"

	"github.com/uov-ai/assistant/internal/domain"
)

// FallbackMarker is the phrase that identifies a "no information" answer.
// Low-confidence answers containing it are excluded from the cache so a
// transient retrieval gap does not pin a useless reply for the TTL.
const FallbackMarker = "don't have enough information"

// Cacheable reports whether a result may be stored. Empty answers are
// never cached; neither are low-confidence fallback answers.
func Cacheable(result domain.AnswerResult) bool {
	if result.Answer == "" {
		return false
	}
	if result.Confidence == domain.ConfidenceLow && strings.Contains(result.Answer, FallbackMarker) {
		return false
	}
	return true
}
