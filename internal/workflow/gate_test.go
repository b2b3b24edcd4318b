package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfirmation(t *testing.T) {
	candidates := []Candidate{
		{FeatureID: "TP-001", RelationshipType: oracle.RelDuplicate},
		{FeatureID: "TP-002", RelationshipType: oracle.RelBuildsOn},
		{FeatureID: "TP-003", RelationshipType: oracle.RelConflictsWith},
		{FeatureID: "TP-004", RelationshipType: oracle.RelSupersedes},
		{FeatureID: "TP-004", RelationshipType: oracle.RelFixes},
		{FeatureID: "TP-005", RelationshipType: oracle.RelFixes},
	}

	got := DefaultConfirmation(candidates)
	assert.Equal(t, map[string]oracle.RelationshipType{
		"TP-002": oracle.RelBuildsOn,
		"TP-004": oracle.RelSupersedes,
		"TP-005": oracle.RelFixes,
	}, got)
}

func TestStorable(t *testing.T) {
	assert.True(t, Storable(oracle.RelBuildsOn))
	assert.True(t, Storable(oracle.RelSupersedes))
	assert.True(t, Storable(oracle.RelFixes))
	assert.False(t, Storable(oracle.RelDuplicate))
	assert.False(t, Storable(oracle.RelConflictsWith))
	assert.False(t, Storable(oracle.RelNone))
}

func TestBuiltinGates(t *testing.T) {
	ctx := context.Background()
	c := []Candidate{{FeatureID: "TP-001", RelationshipType: oracle.RelBuildsOn}}

	d, err := AutoApprove{}.Confirm(ctx, ValidationSummary{}, c)
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.Equal(t, oracle.RelBuildsOn, d.ConfirmedRelationships["TP-001"])

	d, err = Deny{}.Confirm(ctx, ValidationSummary{}, c)
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Empty(t, d.ConfirmedRelationships)

	called := false
	g := GateFunc(func(context.Context, ValidationSummary, []Candidate) (Decision, error) {
		called = true
		return Decision{}, ErrUserCancelled
	})
	_, err = g.Confirm(ctx, ValidationSummary{}, nil)
	assert.True(t, called)
	assert.ErrorIs(t, err, ErrUserCancelled)
}

func TestFileContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	long := strings.Repeat("é", ContextRunes+50)
	require.NoError(t, afero.WriteFile(fs, "/docs/gdd.md", []byte(long), 0o644))

	got := FileContext{Fs: fs, Path: "/docs/gdd.md"}.ProjectContext(context.Background())
	assert.Equal(t, ContextRunes, len([]rune(got)))

	assert.Empty(t, FileContext{Fs: fs, Path: "/docs/missing.md"}.ProjectContext(context.Background()))
	assert.Empty(t, FileContext{Fs: fs}.ProjectContext(context.Background()))
	assert.Equal(t, "ctx", StaticContext("ctx").ProjectContext(context.Background()))
}
