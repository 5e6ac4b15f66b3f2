// Package cache provides the response cache backends: an in-memory
// LRU+TTL store and a Redis-backed alternative. Both key entries by a
// normalized form of the question and enforce the shared write policy.
package cache

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// foldCaser performs Unicode case folding. Safe for concurrent use.
var foldCaser = cases.Fold()

// NormalizeKey canonicalizes a question for cache lookup: trim surrounding
// whitespace, fold case, and drop punctuation. The function is idempotent,
// so "What is FTS?", "what is fts" and an already-normalized key all map to
// the same entry.
func NormalizeKey(question string) string {
	folded := foldCaser.String(strings.TrimSpace(question))
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, folded)
	return strings.TrimSpace(stripped)
}
