package normalize

import "strings"

// Equivalent is the containment predicate shared by the name-based matching
// stages: after trimming surrounding whitespace, the names are equal or one
// contains the other. Case, diacritics and punctuation are significant.
// An empty name is contained in every name.
//
// Callers must still require a single candidate before accepting a match.
func Equivalent(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
