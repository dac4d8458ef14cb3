package matcher

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultSimilarityThreshold is the cutoff above which two normalized titles
// count as a fuzzy match.
const DefaultSimilarityThreshold = 0.7

// Similarity returns 1 - editDistance(a, b) / max(len(a), len(b)), in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}
