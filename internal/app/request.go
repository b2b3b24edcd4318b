package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

// RequestOptions configures one feature request run.
type RequestOptions struct {
	Gate workflow.ApprovalGate

	// Workflow overrides the configured thresholds when set.
	Workflow *workflow.Options
}

// RequestApp runs the feature request workflow.
// CLI and MCP both call Submit.
type RequestApp struct {
	ctx *Context
}

// NewRequestApp creates a request application service.
func NewRequestApp(ctx *Context) *RequestApp {
	return &RequestApp{ctx: ctx}
}

// WorkflowOptions reads workflow.* settings from viper.
func WorkflowOptions() workflow.Options {
	opts := workflow.DefaultOptions()
	if viper.IsSet("workflow.maxRetries") {
		opts.MaxRetries = viper.GetInt("workflow.maxRetries")
	}
	if viper.IsSet("workflow.validateThreshold") {
		opts.ValidateThreshold = viper.GetFloat64("workflow.validateThreshold")
	}
	if viper.IsSet("workflow.confirmThreshold") {
		opts.ConfirmThreshold = viper.GetFloat64("workflow.confirmThreshold")
	}
	if viper.IsSet("workflow.searchThreshold") {
		opts.SearchThreshold = viper.GetFloat64("workflow.searchThreshold")
	}
	if viper.IsSet("workflow.maxResults") {
		opts.MaxResults = viper.GetInt("workflow.maxResults")
	}
	if viper.IsSet("workflow.oracleTimeout") {
		opts.OracleTimeout = viper.GetDuration("workflow.oracleTimeout")
	}
	return opts
}

// Engine wires a workflow engine from the context with the given gate.
func (a *RequestApp) Engine(ctx context.Context, opts RequestOptions) (*workflow.Engine, error) {
	if opts.Gate == nil {
		return nil, fmt.Errorf("approval gate is required")
	}
	judge, err := a.ctx.judge(ctx)
	if err != nil {
		return nil, err
	}

	deps := workflow.Deps{
		Store:      a.ctx.Store,
		Similarity: a.ctx.similarity(ctx),
		Judgment:   judge,
		Gate:       opts.Gate,
		Context:    workflow.FileContext{Fs: a.ctx.Fs, Path: config.GetContextFilePath()},
		Logger:     a.ctx.Logger,
	}
	if ix := a.ctx.indexer(ctx); ix != nil {
		deps.Indexer = ix
	}
	if viper.GetBool("workflow.auditRuns") {
		deps.Audit = workflow.FileAudit{Fs: a.ctx.Fs, Dir: config.GetRunsDir()}
	}

	wopts := WorkflowOptions()
	if opts.Workflow != nil {
		wopts = *opts.Workflow
	}
	return workflow.NewEngine(deps, wopts)
}

// Submit runs one request through the workflow. The error is non-nil only
// when the engine cannot be built or the request is malformed.
func (a *RequestApp) Submit(ctx context.Context, req workflow.Request, opts RequestOptions) (*workflow.Result, error) {
	engine, err := a.Engine(ctx, opts)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	res, err := engine.RunWorkflow(ctx, req)
	if err != nil {
		return nil, err
	}
	a.ctx.Logger.Debug("feature request finished", "run_id", res.RunID, "outcome", res.Outcome, "elapsed", time.Since(started))
	return res, nil
}
