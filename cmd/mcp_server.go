/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/policy"
	"github.com/josephgoksu/FeatureWing/internal/telemetry"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/josephgoksu/FeatureWing/types"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server so AI assistants can submit
and read feature requests in this project's ledger.

Tools:
  feature_request   run a request through the workflow
  feature_get       one feature with relations and documents
  feature_list      features filtered by status or type
  feature_search    keyword search
  feature_stats     counts by status and type

feature_request is decided by the approval policies in .featurewing/policies
when any exist, and auto-approved otherwise. Policies are reloaded when the
files change.

The server uses stdio and runs until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// Tool parameters.
type (
	requestParams struct {
		Title          string   `json:"title"`
		Description    string   `json:"description"`
		Type           string   `json:"type"`
		Keywords       []string `json:"keywords,omitempty"`
		IdempotencyKey string   `json:"idempotency_key,omitempty"`
	}
	getParams struct {
		FeatureID string `json:"feature_id"`
	}
	listParams struct {
		Status string `json:"status,omitempty"`
		Type   string `json:"type,omitempty"`
		Limit  int    `json:"limit,omitempty"`
	}
	searchParams struct {
		Query string `json:"query"`
	}
	statsParams struct{}
)

// mcpJSONResponse wraps v as indented JSON text content.
func mcpJSONResponse(v any) (*mcpsdk.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// mcpErrorResponse reports err as a tool error so the model can react to it.
func mcpErrorResponse(err error) (*mcpsdk.CallToolResultFor[any], error) {
	mcpErr := toMCPError(err)
	data, _ := json.Marshal(mcpErr)
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}, nil
}

func toMCPError(err error) *types.MCPError {
	var mcpErr *types.MCPError
	var storageErr *ledger.StorageError
	switch {
	case errors.As(err, &mcpErr):
		return mcpErr
	case errors.Is(err, ledger.ErrNotFound):
		return types.NewMCPError(types.ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, app.ErrInvalidFeatureID), errors.Is(err, workflow.ErrInvalidRequest):
		return types.NewMCPError(types.ErrCodeInvalidInput, err.Error(), nil)
	case errors.As(err, &storageErr):
		return types.NewMCPError(types.ErrCodeStorage, err.Error(), map[string]any{"op": storageErr.Op})
	default:
		return types.NewMCPError(types.ErrCodeWorkflow, err.Error(), nil)
	}
}

func runMCPServer(ctx context.Context) error {
	// NOTE: MCP uses stdio transport. stdout MUST be pure JSON-RPC.
	// All status/debug output goes to stderr only.
	fmt.Fprintln(os.Stderr, "FeatureWing MCP Server starting...")

	c, closeApp, err := openApp()
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer closeApp()

	engine, err := policy.NewEngine(policy.EngineConfig{
		PoliciesDir: config.GetPolicyDir(),
		Fs:          c.Fs,
		Features:    c.Store,
	})
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	if w, err := policy.NewWatcher(engine, func(err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠  policy reload failed: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ policies reloaded (%d)\n", engine.PolicyCount())
	}); err != nil {
		LogError("policy watcher disabled", err)
	} else {
		w.Start()
		defer w.Stop()
	}

	gate := mcpGate(engine, policy.NewAuditStore(c.Store.DB()))
	telemetryClient.Track(telemetry.EventServerStarted, telemetry.Properties{"policies": engine.PolicyCount()})

	impl := &mcpsdk.Implementation{
		Name:    "featurewing-mcp",
		Version: GetVersion(),
	}
	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintf(os.Stderr, "✓ MCP connection established\n")
			if viper.GetBool("verbose") {
				fmt.Fprintf(os.Stderr, "[DEBUG] Client initialized\n")
			}
		},
	}
	server := mcpsdk.NewServer(impl, serverOpts)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name: "feature_request",
		Description: `Submit a feature request. It is validated, compared with existing features, and approved by project policy before being stored.
Fields: title, description (required), type (new_feature | bug_fix | refactor | enhancement), keywords, idempotency_key.
Returns the workflow result with outcome, feature_id and any relationship candidates.`,
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[requestParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return handleFeatureRequest(ctx, c, gate, params.Arguments)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "feature_get",
		Description: `Get one feature with its relations and documents. Use {"feature_id":"UP-001"}.`,
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[getParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return handleFeatureGet(ctx, c, params.Arguments)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "feature_list",
		Description: "List features, newest first. Optional filters: status, type, limit.",
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[listParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return handleFeatureList(ctx, c, params.Arguments)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "feature_search",
		Description: `Keyword search over feature titles, descriptions and keywords. Use {"query":"dash cooldown"}.`,
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[searchParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return handleFeatureSearch(ctx, c, params.Arguments)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "feature_stats",
		Description: "Count features by status and type.",
	}, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[statsParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return handleFeatureStats(ctx, c)
	})

	// Run the server (stdio transport only)
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// mcpGate lets policies decide when any are loaded and approves otherwise.
// The policy set is checked per call so hot reloads take effect.
func mcpGate(engine *policy.Engine, audit *policy.AuditStore) workflow.ApprovalGate {
	policyGate := policy.NewGate(engine, audit)
	return workflow.GateFunc(func(ctx context.Context, s workflow.ValidationSummary, cands []workflow.Candidate) (workflow.Decision, error) {
		if engine.PolicyCount() > 0 {
			return policyGate.Confirm(ctx, s, cands)
		}
		return workflow.AutoApprove{}.Confirm(ctx, s, cands)
	})
}

func handleFeatureRequest(ctx context.Context, c *app.Context, gate workflow.ApprovalGate, p requestParams) (*mcpsdk.CallToolResultFor[any], error) {
	if strings.TrimSpace(p.Title) == "" {
		return mcpErrorResponse(types.NewMCPError(types.ErrCodeInvalidInput, "title is required", nil))
	}
	if strings.TrimSpace(p.Description) == "" {
		return mcpErrorResponse(types.NewMCPError(types.ErrCodeInvalidInput, "description is required", nil))
	}
	if p.Type == "" {
		p.Type = string(ledger.TypeNewFeature)
	}

	req := workflow.Request{
		Title:          strings.TrimSpace(p.Title),
		Description:    strings.TrimSpace(p.Description),
		Type:           ledger.FeatureType(p.Type),
		Keywords:       p.Keywords,
		IdempotencyKey: p.IdempotencyKey,
	}
	started := time.Now()
	res, err := app.NewRequestApp(c).Submit(ctx, req, app.RequestOptions{Gate: gate})
	if err != nil {
		return mcpErrorResponse(err)
	}
	telemetryClient.Track(telemetry.EventFeatureRequested, telemetry.RequestProps(
		string(res.Outcome), p.Type, "mcp", res.RetryCount, len(res.Candidates), time.Since(started),
	))
	return mcpJSONResponse(res)
}

func handleFeatureGet(ctx context.Context, c *app.Context, p getParams) (*mcpsdk.CallToolResultFor[any], error) {
	f, err := app.NewFeatureApp(c).Get(ctx, normalizeID(p.FeatureID))
	if err != nil {
		return mcpErrorResponse(err)
	}
	return mcpJSONResponse(f)
}

func handleFeatureList(ctx context.Context, c *app.Context, p listParams) (*mcpsdk.CallToolResultFor[any], error) {
	features, err := app.NewFeatureApp(c).List(ctx, ledger.ListFilter{
		Status: ledger.Status(p.Status),
		Type:   ledger.FeatureType(p.Type),
		Limit:  p.Limit,
	})
	if err != nil {
		return mcpErrorResponse(types.NewMCPError(types.ErrCodeInvalidInput, err.Error(), nil))
	}
	return mcpJSONResponse(features)
}

func handleFeatureSearch(ctx context.Context, c *app.Context, p searchParams) (*mcpsdk.CallToolResultFor[any], error) {
	terms := strings.Fields(p.Query)
	if len(terms) == 0 {
		return mcpErrorResponse(types.NewMCPError(types.ErrCodeInvalidInput, "query is required", nil))
	}
	features, err := app.NewFeatureApp(c).Search(ctx, terms)
	if err != nil {
		return mcpErrorResponse(err)
	}
	return mcpJSONResponse(features)
}

func handleFeatureStats(ctx context.Context, c *app.Context) (*mcpsdk.CallToolResultFor[any], error) {
	stats, err := app.NewFeatureApp(c).Stats(ctx)
	if err != nil {
		return mcpErrorResponse(err)
	}
	return mcpJSONResponse(stats)
}
