/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/logger"
	"github.com/josephgoksu/FeatureWing/internal/policy"
	"github.com/josephgoksu/FeatureWing/internal/telemetry"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Gate names reported in telemetry and verbose output.
const (
	gateInteractive = "interactive"
	gateAuto        = "auto"
	gatePolicy      = "policy"
	gateDeny        = "deny"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Submit a feature request through validation and approval",
	Long: `Run a feature request through the workflow:

  1. An LLM checks the request is complete and clear (retried on transient failures).
  2. Similar features are found in the ledger.
  3. Each similar feature is classified as duplicate, supersedes, builds_on,
     fixes, conflicts or unrelated.
  4. Duplicates, conflicts and high-confidence matches go to an approval gate.
  5. The approved request is stored with its confirmed relationships.

Approval gate:
  interactive terminal   you review the candidates and confirm relationships
  --yes                  approve and keep the suggested relationships
  --policy               OPA policies in .featurewing/policies decide
  otherwise              the request is rejected at the gate

Examples:
  featurewing request --title "Dash" --description "Quick dash with a cooldown" --type new_feature
  echo "Fix the dash cooldown reset" | featurewing request --title "Dash fix" --description - --type bug_fix --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		featureType, _ := cmd.Flags().GetString("type")
		keywords, _ := cmd.Flags().GetString("keywords")
		idemKey, _ := cmd.Flags().GetString("idempotency-key")
		yes, _ := cmd.Flags().GetBool("yes")
		usePolicy, _ := cmd.Flags().GetBool("policy")
		asJSON, _ := cmd.Flags().GetBool("json")

		interactive := ui.IsInteractive() && !asJSON
		req, err := buildRequest(cmd.InOrStdin(), interactive, title, description, featureType, keywords)
		if err != nil {
			return err
		}
		req.IdempotencyKey = idemKey

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		gate, gateName, err := selectGate(c, usePolicy || (viper.GetBool("policy.enabled") && !yes), yes, interactive)
		if err != nil {
			return err
		}

		return runRequest(cmd.Context(), cmd.OutOrStdout(), c, req, gate, gateName, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringP("title", "t", "", "short feature title")
	requestCmd.Flags().StringP("description", "d", "", "feature description (\"-\" reads stdin)")
	requestCmd.Flags().String("type", string(ledger.TypeNewFeature), "feature type: new_feature, bug_fix, refactor, enhancement")
	requestCmd.Flags().StringP("keywords", "k", "", "comma separated keywords")
	requestCmd.Flags().String("idempotency-key", "", "return the existing feature if this key was already used")
	requestCmd.Flags().BoolP("yes", "y", false, "approve at the gate without prompting")
	requestCmd.Flags().Bool("policy", false, "let OPA policies decide at the gate")
	requestCmd.Flags().Bool("json", false, "print the workflow result as JSON")
}

// buildRequest assembles a workflow request from flags, prompting for
// missing text when interactive.
func buildRequest(in io.Reader, interactive bool, title, description, featureType, keywords string) (workflow.Request, error) {
	if description == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return workflow.Request{}, fmt.Errorf("read description from stdin: %w", err)
		}
		description = string(data)
		// stdin is consumed, so the gate cannot prompt either.
		interactive = false
	}

	if strings.TrimSpace(title) == "" && interactive {
		v, err := ui.PromptText(ui.TextPromptOptions{Title: "Feature title", Placeholder: "Dash ability"})
		if err != nil {
			return workflow.Request{}, err
		}
		title = v
	}
	if strings.TrimSpace(description) == "" && interactive {
		v, err := ui.PromptText(ui.TextPromptOptions{Title: "Description", Placeholder: "What should it do, and why?"})
		if err != nil {
			return workflow.Request{}, err
		}
		description = v
	}

	req := workflow.Request{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Type:        ledger.FeatureType(featureType),
		Keywords:    splitList(keywords),
	}
	if req.Title == "" {
		return req, fmt.Errorf("--title is required")
	}
	if req.Description == "" {
		return req, fmt.Errorf("--description is required")
	}
	if !req.Type.Valid() {
		return req, fmt.Errorf("invalid --type %q (one of new_feature, bug_fix, refactor, enhancement)", featureType)
	}
	return req, nil
}

// selectGate picks the approval gate. Policy wins over --yes, which wins
// over the interactive prompt; with none of them the gate denies.
func selectGate(c *app.Context, usePolicy, yes, interactive bool) (workflow.ApprovalGate, string, error) {
	switch {
	case usePolicy:
		engine, err := policy.NewEngine(policy.EngineConfig{
			PoliciesDir: config.GetPolicyDir(),
			Fs:          c.Fs,
			Features:    c.Store,
		})
		if err != nil {
			return nil, "", fmt.Errorf("load policies: %w", err)
		}
		if engine.PolicyCount() == 0 {
			return nil, "", fmt.Errorf("no policies found in %s", config.GetPolicyDir())
		}
		return policy.NewGate(engine, policy.NewAuditStore(c.Store.DB())), gatePolicy, nil
	case yes:
		return workflow.AutoApprove{}, gateAuto, nil
	case interactive:
		return ui.ConfirmGate{}, gateInteractive, nil
	default:
		return workflow.Deny{}, gateDeny, nil
	}
}

// pauseSpinner hides the spinner while the gate owns the terminal and resumes
// it for the stages that follow, including retries.
func pauseSpinner(spinner *ui.Spinner, gate workflow.ApprovalGate) workflow.ApprovalGate {
	return workflow.GateFunc(func(ctx context.Context, s workflow.ValidationSummary, cands []workflow.Candidate) (workflow.Decision, error) {
		spinner.Stop()
		defer spinner.Start()
		return gate.Confirm(ctx, s, cands)
	})
}

func runRequest(ctx context.Context, out io.Writer, c *app.Context, req workflow.Request, gate workflow.ApprovalGate, gateName string, asJSON bool) error {
	logger.SetLastRequest(req.Title)

	var spinner *ui.Spinner
	if !asJSON {
		spinner = ui.NewSpinner(os.Stderr, " Reviewing feature request...")
		spinner.Start()
		gate = pauseSpinner(spinner, gate)
	}

	started := time.Now()
	res, err := app.NewRequestApp(c).Submit(ctx, req, app.RequestOptions{Gate: gate})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	logger.SetRunID(res.RunID)

	telemetryClient.Track(telemetry.EventFeatureRequested, telemetry.RequestProps(
		string(res.Outcome), string(req.Type), gateName, res.RetryCount, len(res.Candidates), time.Since(started),
	))

	if asJSON {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, ui.RenderResult(res))
		if viper.GetBool("verbose") {
			fmt.Fprintf(out, "run %s, gate %s, %d transition(s)\n", res.RunID, gateName, len(res.Transitions))
		}
	}

	if err := res.Err(); err != nil {
		return &reportedError{err: err}
	}
	return nil
}
