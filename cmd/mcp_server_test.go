package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/josephgoksu/FeatureWing/internal/policy"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/josephgoksu/FeatureWing/types"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcpsdk.CallToolResultFor[any]) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToMCPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "not found", err: fmt.Errorf("feature UP-009: %w", ledger.ErrNotFound), code: types.ErrCodeNotFound},
		{name: "bad id", err: fmt.Errorf("%w \"x\"", app.ErrInvalidFeatureID), code: types.ErrCodeInvalidInput},
		{name: "bad request", err: fmt.Errorf("%w: title is required", workflow.ErrInvalidRequest), code: types.ErrCodeInvalidInput},
		{name: "storage", err: &ledger.StorageError{Op: "add feature", Err: errors.New("disk I/O error")}, code: types.ErrCodeStorage},
		{name: "passthrough", err: types.NewMCPError(types.ErrCodeInvalidInput, "query is required", nil), code: types.ErrCodeInvalidInput},
		{name: "other", err: errors.New("boom"), code: types.ErrCodeWorkflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, toMCPError(tt.err).Code)
		})
	}
}

func TestMCPGate(t *testing.T) {
	cands := []workflow.Candidate{{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.97}}
	s := workflow.ValidationSummary{Title: "Dash", Description: "dash", Type: ledger.TypeNewFeature, Confidence: 0.9}

	open := mcpGate(policy.NewEngineWithPolicies(nil, nil), nil)
	d, err := open.Confirm(context.Background(), s, cands)
	require.NoError(t, err)
	assert.True(t, d.Approved)

	strict := policy.NewEngineWithPolicies([]*policy.PolicyFile{{Name: "dup", Path: "dup.rego", Content: `package featurewing.approval

import rego.v1

deny contains msg if {
	some c in input.candidates
	c.relationship_type == "duplicate"
	msg := "duplicate"
}
`}}, nil)
	d, err = mcpGate(strict, nil).Confirm(context.Background(), s, cands)
	require.NoError(t, err)
	assert.False(t, d.Approved)
}

func TestHandleFeatureRequest(t *testing.T) {
	c := newTestApp(t)
	ctx := context.Background()

	res, err := handleFeatureRequest(ctx, c, workflow.AutoApprove{}, requestParams{Title: " ", Description: "x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), types.ErrCodeInvalidInput)

	res, err = handleFeatureRequest(ctx, c, workflow.AutoApprove{}, requestParams{
		Title:       "Dash",
		Description: "Quick dash forward with a cooldown",
		Keywords:    []string{"movement"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out workflow.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, workflow.OutcomeSuccess, out.Outcome)
	assert.Equal(t, "UP-001", out.FeatureID)

	f, err := c.Store.GetFeatureByID(ctx, "UP-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeNewFeature, f.Type)
}

func TestHandleFeatureReads(t *testing.T) {
	c := newTestApp(t)
	ctx := context.Background()
	id := seedFeature(t, c, "Dash cooldown", "Dash cooldown resets wrongly")
	seedFeature(t, c, "Inventory", "Grid based inventory screen")

	res, err := handleFeatureGet(ctx, c, getParams{FeatureID: "up-1"})
	require.NoError(t, err)
	var f ledger.Feature
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &f))
	assert.Equal(t, id, f.ID)
	require.Len(t, f.Documents, 1)

	res, err = handleFeatureGet(ctx, c, getParams{FeatureID: "UP-404"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), types.ErrCodeNotFound)

	res, err = handleFeatureList(ctx, c, listParams{Limit: 1})
	require.NoError(t, err)
	var list []ledger.Feature
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Len(t, list, 1)

	res, err = handleFeatureList(ctx, c, listParams{Status: "done"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handleFeatureSearch(ctx, c, searchParams{Query: "cooldown"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	res, err = handleFeatureSearch(ctx, c, searchParams{Query: "  "})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handleFeatureStats(ctx, c)
	require.NoError(t, err)
	var stats ledger.Statistics
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[ledger.StatusRequested])
}
