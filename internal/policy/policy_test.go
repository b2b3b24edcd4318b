package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

const duplicatePolicy = `package featurewing.approval

import rego.v1

deny contains msg if {
	some c in input.candidates
	c.relationship_type == "duplicate"
	c.confidence_score >= 0.9
	msg := sprintf("likely duplicate of %s", [c.feature_id])
}

warn contains msg if {
	input.validation.confidence_score < 0.8
	msg := "validation confidence is marginal"
}
`

const statusPolicy = `package featurewing.approval

import rego.v1

deny contains msg if {
	some c in input.candidates
	c.relationship_type == "supersedes"
	featurewing.feature_status(c.feature_id) == "validated"
	msg := sprintf("%s is validated and cannot be superseded", [c.feature_id])
}
`

type fakeLookup map[string]ledger.Status

func (f fakeLookup) GetFeatureByID(_ context.Context, id string) (*ledger.Feature, error) {
	st, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &ledger.Feature{ID: id, Status: st}, nil
}

func summary(confidence float64) workflow.ValidationSummary {
	return workflow.ValidationSummary{Title: "Add dash ability", Description: "dash", Type: ledger.TypeNewFeature, Confidence: confidence}
}

func TestEngine_NoPoliciesAllows(t *testing.T) {
	engine := NewEngineWithPolicies(nil, nil)

	d, err := engine.Evaluate(context.Background(), map[string]any{"anything": true})
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())
	assert.Empty(t, d.Violations)
	assert.NotEmpty(t, d.DecisionID)
	assert.Equal(t, DefaultPolicyPackage, d.PolicyPath)
}

func TestEngine_DenyAndWarn(t *testing.T) {
	engine := NewEngineWithPolicies([]*PolicyFile{{Name: "dup", Path: "dup.rego", Content: duplicatePolicy}}, nil)

	tests := []struct {
		name         string
		candidates   []workflow.Candidate
		confidence   float64
		wantDenied   bool
		wantWarnings int
	}{
		{
			name:       "no candidates",
			confidence: 0.9,
		},
		{
			name:       "low confidence duplicate",
			candidates: []workflow.Candidate{{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.85}},
			confidence: 0.9,
		},
		{
			name:       "high confidence duplicate",
			candidates: []workflow.Candidate{{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.95}},
			confidence: 0.9,
			wantDenied: true,
		},
		{
			name:         "marginal validation warns only",
			confidence:   0.75,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := engine.Evaluate(context.Background(), NewApprovalInput(summary(tt.confidence), tt.candidates))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDenied, d.IsDenied())
			assert.Len(t, d.Warnings, tt.wantWarnings)
			if tt.wantDenied {
				assert.Equal(t, []string{"likely duplicate of UP-001"}, d.Violations)
			}
		})
	}
}

func TestEngine_FeatureStatusBuiltin(t *testing.T) {
	lookup := fakeLookup{"UP-001": ledger.StatusValidated, "UP-002": ledger.StatusRequested}
	engine := NewEngineWithPolicies([]*PolicyFile{{Name: "status", Path: "status.rego", Content: statusPolicy}}, lookup)
	ctx := context.Background()

	d, err := engine.Evaluate(ctx, NewApprovalInput(summary(0.9), []workflow.Candidate{
		{FeatureID: "UP-001", RelationshipType: oracle.RelSupersedes, Confidence: 0.9},
	}))
	require.NoError(t, err)
	assert.True(t, d.IsDenied())

	d, err = engine.Evaluate(ctx, NewApprovalInput(summary(0.9), []workflow.Candidate{
		{FeatureID: "UP-002", RelationshipType: oracle.RelSupersedes, Confidence: 0.9},
		{FeatureID: "UP-404", RelationshipType: oracle.RelSupersedes, Confidence: 0.9},
	}))
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())

	noLookup := NewEngineWithPolicies([]*PolicyFile{{Name: "status", Path: "status.rego", Content: statusPolicy}}, nil)
	d, err = noLookup.Evaluate(ctx, NewApprovalInput(summary(0.9), []workflow.Candidate{
		{FeatureID: "UP-001", RelationshipType: oracle.RelSupersedes},
	}))
	require.NoError(t, err)
	assert.True(t, d.IsAllowed())
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(duplicatePolicy))
	assert.NoError(t, ValidatePolicy(statusPolicy))
	assert.Error(t, ValidatePolicy("package broken\n\ndeny contains msg if {"))
}

func TestLoaderAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/proj/.featurewing/policies"
	require.NoError(t, afero.WriteFile(fs, dir+"/dup.rego", []byte(duplicatePolicy), 0o644))
	require.NoError(t, afero.WriteFile(fs, dir+"/nested/status.rego", []byte(statusPolicy), 0o644))
	require.NoError(t, afero.WriteFile(fs, dir+"/dup_test.rego", []byte("package featurewing.approval_test\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, dir+"/README.md", []byte("docs"), 0o644))

	policies, err := NewLoader(fs, dir).LoadAll()
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "dup", policies[0].Name)
	assert.Equal(t, "status", policies[1].Name)

	files, err := NewLoader(fs, dir).ListFiles()
	require.NoError(t, err)
	assert.Len(t, files, 3)

	missing, err := NewLoader(fs, "/nowhere").LoadAll()
	require.NoError(t, err)
	assert.Empty(t, missing)

	engine, err := NewEngine(EngineConfig{Fs: fs, PoliciesDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.PolicyCount())

	// A broken policy keeps the previous set.
	require.NoError(t, afero.WriteFile(fs, dir+"/broken.rego", []byte("package x\nallow if {"), 0o644))
	assert.Error(t, engine.Reload())
	assert.Equal(t, []string{"dup", "status"}, engine.PolicyNames())

	require.NoError(t, fs.Remove(dir+"/broken.rego"))
	require.NoError(t, fs.Remove(dir+"/dup.rego"))
	require.NoError(t, engine.Reload())
	assert.Equal(t, []string{"status"}, engine.PolicyNames())
}

func TestGate(t *testing.T) {
	store, err := ledger.Open(t.TempDir(), "UP")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	audit := NewAuditStore(store.DB())
	engine := NewEngineWithPolicies([]*PolicyFile{{Name: "dup", Path: "dup.rego", Content: duplicatePolicy}}, store)
	gate := NewGate(engine, audit)
	ctx := context.Background()

	denied, err := gate.Confirm(ctx, summary(0.9), []workflow.Candidate{
		{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.97},
		{FeatureID: "UP-002", RelationshipType: oracle.RelBuildsOn, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.False(t, denied.Approved)
	assert.Empty(t, denied.ConfirmedRelationships)

	approved, err := gate.Confirm(ctx, summary(0.9), []workflow.Candidate{
		{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.85},
		{FeatureID: "UP-002", RelationshipType: oracle.RelBuildsOn, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, map[string]oracle.RelationshipType{"UP-002": oracle.RelBuildsOn}, approved.ConfirmedRelationships)

	decisions, err := audit.ListDecisions(ListDecisionsOptions{})
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	denies, err := audit.ListDecisions(ListDecisionsOptions{Result: PolicyResultDeny})
	require.NoError(t, err)
	require.Len(t, denies, 1)
	assert.Equal(t, []string{"likely duplicate of UP-001"}, denies[0].Violations)

	got, err := audit.GetDecision(denies[0].DecisionID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicyPackage, got.PolicyPath)
	assert.NotNil(t, got.Input)

	n, err := audit.CountViolations(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = audit.GetDecision("missing")
	assert.Error(t, err)
}

func TestAuditStore_Prune(t *testing.T) {
	store, err := ledger.Open(t.TempDir(), "UP")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	audit := NewAuditStore(store.DB())
	old := &PolicyDecision{PolicyPath: DefaultPolicyPackage, Result: PolicyResultAllow, EvaluatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &PolicyDecision{PolicyPath: DefaultPolicyPackage, Result: PolicyResultDeny, Violations: []string{"x"}, RunID: "run-1"}
	require.NoError(t, audit.SaveDecision(old))
	require.NoError(t, audit.SaveDecision(fresh))

	pruned, err := audit.PruneOldDecisions(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	left, err := audit.ListDecisions(ListDecisionsOptions{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.DecisionID, left[0].DecisionID)
}

func TestTestRunner(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/policies"
	require.NoError(t, afero.WriteFile(fs, dir+"/dup.rego", []byte(duplicatePolicy), 0o644))
	require.NoError(t, afero.WriteFile(fs, dir+"/dup_test.rego", []byte(`package featurewing.approval_test

import rego.v1

import data.featurewing.approval

test_high_confidence_duplicate_denied if {
	count(approval.deny) == 1 with input as {"candidates": [{"feature_id": "UP-001", "relationship_type": "duplicate", "confidence_score": 0.95}], "validation": {"confidence_score": 0.9}}
}

test_builds_on_allowed if {
	count(approval.deny) == 0 with input as {"candidates": [{"feature_id": "UP-001", "relationship_type": "builds_on", "confidence_score": 0.95}], "validation": {"confidence_score": 0.9}}
}

test_wrong_expectation if {
	count(approval.deny) == 1 with input as {"candidates": [], "validation": {"confidence_score": 0.9}}
}
`), 0o644))

	runner := NewTestRunner(fs, dir)
	has, err := runner.HasTests()
	require.NoError(t, err)
	assert.True(t, has)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.AllPassed())
	assert.Contains(t, summary.FormatSummary(), "3 tests, 2 passed, 1 failed")

	empty, err := NewTestRunner(fs, "/none").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No tests found.\n", empty.FormatSummary())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	engine, err := NewEngine(EngineConfig{PoliciesDir: dir})
	require.NoError(t, err)
	require.Equal(t, 0, engine.PolicyCount())

	reloaded := make(chan error, 8)
	w, err := NewWatcher(engine, func(err error) { reloaded <- err })
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	w.Start()
	t.Cleanup(w.Stop)

	tmp := filepath.Join(dir, "dup.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(duplicatePolicy), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "dup.rego")))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("policies were not reloaded")
	}
	assert.Eventually(t, func() bool { return engine.PolicyCount() == 1 }, 5*time.Second, 20*time.Millisecond)
}
