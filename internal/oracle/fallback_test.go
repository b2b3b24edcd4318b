package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		similarity float64
		want       RelationshipType
	}{
		{0.95, RelDuplicate},
		{0.9, RelDuplicate},
		{0.89, RelBuildsOn},
		{0.82, RelBuildsOn},
		{0.8, RelBuildsOn},
		{0.79, RelNone},
		{0.5, RelNone},
		{0, RelNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackClassify(tt.similarity), "similarity %.2f", tt.similarity)
	}
}

func TestParseRelationship(t *testing.T) {
	tests := map[string]RelationshipType{
		"duplicate":                     RelDuplicate,
		"  Builds_On \n":                RelBuildsOn,
		`"supersedes"`:                  RelSupersedes,
		"conflicts with":                RelConflictsWith,
		"fixes.":                        RelFixes,
		"none":                          RelNone,
		"duplicate\nBoth add dashing.":  RelDuplicate,
		"they look unrelated to me":     RelNone,
		"":                              RelNone,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseRelationship(in), "input %q", in)
	}
}

func TestRelationshipType_NeedsConfirmation(t *testing.T) {
	assert.True(t, RelDuplicate.NeedsConfirmation())
	assert.True(t, RelConflictsWith.NeedsConfirmation())
	for _, r := range []RelationshipType{RelSupersedes, RelBuildsOn, RelFixes, RelNone} {
		assert.False(t, r.NeedsConfirmation(), r)
	}
	assert.False(t, RelationshipType("maybe").Valid())
}
