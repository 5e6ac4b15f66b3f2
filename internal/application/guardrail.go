package application

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// foldCaser performs Unicode case folding for caseless comparison.
// Safe for concurrent use.
var foldCaser = cases.Fold()

// identityPhrases are the patterns that mark a question as being about the
// assistant itself rather than the document corpus. Matching is caseless,
// punctuation-insensitive, and tolerant of small typos on short questions.
// Tamil and Sinhala equivalents cover the faculty's user base.
var identityPhrases = []string{
	"who are you",
	"what are you",
	"what is your name",
	"your name",
	"what can you do",
	"what do you do",
	"introduce yourself",
	"tell me about yourself",
	"what is your purpose",
	"who made you",
	"who created you",
	"who built you",
	"are you a bot",
	"are you human",
	"are you an ai",
	"நீங்கள் யார்",
	"உன் பெயர் என்ன",
	"ඔබ කවුද",
	"ඔබේ නම කුමක්ද",
}

// maxTypoDistance is the edit distance tolerated when fuzzy-matching a
// short question against an identity phrase.
const maxTypoDistance = 2

// GuardrailClassifier decides whether a question targets the assistant's
// identity, and supplies the canned self-description used instead of the
// retrieval pipeline.
type GuardrailClassifier struct {
	selfDescription string
	phrases         []string
}

// NewGuardrailClassifier builds a classifier with the given canned
// self-description.
func NewGuardrailClassifier(selfDescription string) *GuardrailClassifier {
	folded := make([]string, len(identityPhrases))
	for i, p := range identityPhrases {
		folded[i] = foldCaser.String(p)
	}
	return &GuardrailClassifier{
		selfDescription: selfDescription,
		phrases:         folded,
	}
}

// SelfDescription returns the canned identity answer.
func (g *GuardrailClassifier) SelfDescription() string {
	return g.selfDescription
}

// IsIdentityQuestion reports whether the question asks about the assistant
// itself. Detection is containment-based: any identity phrase appearing in
// the normalized question matches, so "hey, who are you exactly?" still
// short-circuits. Short questions additionally get a fuzzy whole-string
// comparison to absorb typos like "who are yuo".
func (g *GuardrailClassifier) IsIdentityQuestion(question string) bool {
	normalized := normalizeQuestion(question)
	if normalized == "" {
		return false
	}

	for _, phrase := range g.phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}

	// Fuzzy matching only for inputs close in length to a phrase;
	// applying edit distance to long sentences produces false negatives
	// only, so the length gate just avoids wasted work.
	for _, phrase := range g.phrases {
		if abs(len(normalized)-len(phrase)) > maxTypoDistance {
			continue
		}
		if levenshtein.ComputeDistance(normalized, phrase) <= maxTypoDistance {
			return true
		}
	}
	return false
}

// normalizeQuestion lowercases via Unicode case folding, strips punctuation,
// and collapses surrounding whitespace.
func normalizeQuestion(question string) string {
	folded := foldCaser.String(strings.TrimSpace(question))
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, folded)
	return strings.TrimSpace(stripped)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
