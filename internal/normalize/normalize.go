package normalize

import "strings"

// ID returns a normalized form of a principal id suitable for storage
// and comparisons. Normalization currently trims surrounding whitespace;
// principal ids are opaque and case-sensitive, so no case folding happens.
func ID(id string) string {
	return strings.TrimSpace(id)
}

// Pair returns the two principal ids in canonical order (lexicographically
// ascending). Conversations store their participants in this order so an
// unordered pair always maps to the same document.
func Pair(a, b string) (string, string) {
	a, b = ID(a), ID(b)
	if a > b {
		return b, a
	}
	return a, b
}

// PairKey builds the deduplication key for a participant pair. The unique
// conversation index is built on this key together with the context id, so
// concurrent creators collide on insert instead of duplicating.
func PairKey(a, b string) string {
	lo, hi := Pair(a, b)
	return lo + "|" + hi
}
