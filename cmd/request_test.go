package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest(nil, false, " Dash ", "Quick dash", "enhancement", "movement, dash")
	require.NoError(t, err)
	assert.Equal(t, "Dash", req.Title)
	assert.Equal(t, ledger.TypeEnhancement, req.Type)
	assert.Equal(t, []string{"movement", "dash"}, req.Keywords)

	req, err = buildRequest(strings.NewReader("  from stdin\n"), true, "Dash", "-", "bug_fix", "")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", req.Description)

	_, err = buildRequest(nil, false, "", "x", "bug_fix", "")
	assert.ErrorContains(t, err, "--title")

	_, err = buildRequest(nil, false, "x", " ", "bug_fix", "")
	assert.ErrorContains(t, err, "--description")

	_, err = buildRequest(nil, false, "x", "y", "feature", "")
	assert.ErrorContains(t, err, "invalid --type")
}

func TestSelectGate(t *testing.T) {
	c := newTestApp(t)
	policyDir := t.TempDir()
	viper.Set("policy.dir", policyDir)

	_, _, err := selectGate(c, true, false, false)
	assert.ErrorContains(t, err, "no policies found")

	require.NoError(t, afero.WriteFile(afero.NewOsFs(), filepath.Join(policyDir, "approval.rego"), []byte(samplePolicy), 0o644))
	gate, name, err := selectGate(c, true, true, true)
	require.NoError(t, err)
	assert.Equal(t, gatePolicy, name)
	assert.NotNil(t, gate)

	gate, name, err = selectGate(c, false, true, true)
	require.NoError(t, err)
	assert.Equal(t, gateAuto, name)
	assert.IsType(t, workflow.AutoApprove{}, gate)

	gate, name, err = selectGate(c, false, false, true)
	require.NoError(t, err)
	assert.Equal(t, gateInteractive, name)
	assert.IsType(t, ui.ConfirmGate{}, gate)

	gate, name, err = selectGate(c, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, gateDeny, name)
	assert.IsType(t, workflow.Deny{}, gate)
}

func TestPauseSpinner(t *testing.T) {
	spinner := ui.NewSpinner(io.Discard, " working")
	spinner.Start()
	t.Cleanup(spinner.Stop)

	var drawingDuringPrompt bool
	gate := pauseSpinner(spinner, workflow.GateFunc(func(context.Context, workflow.ValidationSummary, []workflow.Candidate) (workflow.Decision, error) {
		drawingDuringPrompt = spinner.Active()
		return workflow.Decision{}, nil
	}))

	for range 2 {
		_, err := gate.Confirm(context.Background(), workflow.ValidationSummary{}, nil)
		require.NoError(t, err)
		assert.False(t, drawingDuringPrompt)
		assert.True(t, spinner.Active())
	}
}

func TestRunRequest_JSON(t *testing.T) {
	c := newTestApp(t)
	var out bytes.Buffer

	req := workflow.Request{Title: "Dash", Description: "Quick dash forward with a cooldown", Type: ledger.TypeNewFeature}
	require.NoError(t, runRequest(context.Background(), &out, c, req, workflow.Deny{}, gateDeny, true))

	var res workflow.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, workflow.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "UP-001", res.FeatureID)
}

func TestRunRequest_GateRejects(t *testing.T) {
	c := newTestApp(t)
	c.Judge = stubJudge{verdict: oracle.RelDuplicate}
	desc := "Player dash ability with a short cooldown"
	seedFeature(t, c, "Dash", desc)

	var out bytes.Buffer
	req := workflow.Request{Title: "Dash again", Description: desc, Type: ledger.TypeNewFeature}
	err := runRequest(context.Background(), &out, c, req, workflow.Deny{}, gateDeny, true)

	var shown *reportedError
	require.ErrorAs(t, err, &shown)
	assert.Equal(t, ExitInterrupted, exitCode(err))

	var res workflow.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, workflow.OutcomeCancelled, res.Outcome)
	assert.Equal(t, workflow.DefaultOptions().MaxRetries, res.RetryCount)
	assert.Empty(t, res.FeatureID)
}

func TestWriteSnapshot(t *testing.T) {
	c := newTestApp(t)
	seedFeature(t, c, "Dash", "Quick dash forward")
	snap, err := c.Store.Export(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, snap, "yaml"))
	assert.Contains(t, buf.String(), "prefix: UP")
	assert.Contains(t, buf.String(), "feature_id: UP-001")

	buf.Reset()
	require.NoError(t, writeSnapshot(&buf, snap, "JSON"))
	assert.Contains(t, buf.String(), `"feature_id": "UP-001"`)

	assert.Error(t, writeSnapshot(&buf, snap, "csv"))
}

func TestPolicyDirFollowsConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("project.dir", "/tmp/fw")
	assert.Equal(t, filepath.Join("/tmp/fw", config.PoliciesDirName), config.GetPolicyDir())
}
