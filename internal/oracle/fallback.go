package oracle

import "strings"

// Similarity cut-offs for FallbackClassify.
const (
	DuplicateSimilarity = 0.9
	BuildsOnSimilarity  = 0.8
)

// FallbackClassify is the deterministic classifier used whenever the
// judgment oracle cannot classify a candidate.
func FallbackClassify(similarity float64) RelationshipType {
	switch {
	case similarity >= DuplicateSimilarity:
		return RelDuplicate
	case similarity >= BuildsOnSimilarity:
		return RelBuildsOn
	default:
		return RelNone
	}
}

// ParseRelationship maps a free-text model answer to a verdict. Anything
// unrecognised is RelNone.
func ParseRelationship(answer string) RelationshipType {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.Trim(a, "\"'`.")
	a = strings.ReplaceAll(a, " ", "_")
	a = strings.ReplaceAll(a, "-", "_")
	r := RelationshipType(a)
	if r.Valid() {
		return r
	}
	// Models sometimes explain themselves; accept a verdict on the first line.
	if first, _, ok := strings.Cut(a, "\n"); ok {
		return ParseRelationship(first)
	}
	return RelNone
}
