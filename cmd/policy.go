/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/policy"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage approval policies",
	Long: `Approval policies are Rego files in .featurewing/policies (package
featurewing.approval). A request is rejected at the gate when any deny rule
produces a message. Use 'featurewing request --policy' or set
policy.enabled: true to let policies decide instead of a human.`,
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the Rego unit tests next to the policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verboseOut, _ := cmd.Flags().GetBool("verbose-results")

		summary, err := policy.NewTestRunner(afero.NewOsFs(), config.GetPolicyDir()).Run(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range summary.Results {
			switch {
			case r.Passed:
				if verboseOut {
					fmt.Fprintf(out, "%s %s.%s\n", ui.StyleSuccess.Render("PASS"), r.Package, r.Name)
				}
			case r.Skipped:
				fmt.Fprintf(out, "%s %s.%s\n", ui.StyleSubtle.Render("SKIP"), r.Package, r.Name)
			default:
				fmt.Fprintf(out, "%s %s.%s %s\n", ui.StyleError.Render("FAIL"), r.Package, r.Name, r.Error)
			}
		}
		fmt.Fprint(out, summary.FormatSummary())
		if !summary.AllPassed() {
			return &reportedError{err: fmt.Errorf("%d policy test(s) failed", summary.Failed+summary.Errored)}
		}
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file]...",
	Short: "Check policy syntax (all policies without arguments)",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			loaded, err := policy.NewLoader(afero.NewOsFs(), config.GetPolicyDir()).ListFiles()
			if err != nil {
				return err
			}
			files = loaded
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No policies in %s\n", config.GetPolicyDir())
			return nil
		}

		failed := 0
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err == nil {
				err = policy.ValidatePolicy(string(data))
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", ui.StyleError.Render("✗"), filepath.Base(f), err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.StyleSuccess.Render("✓"), filepath.Base(f))
		}
		if failed > 0 {
			return &reportedError{err: fmt.Errorf("%d invalid policy file(s)", failed)}
		}
		return nil
	},
}

var policyDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recorded gate decisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		result, _ := cmd.Flags().GetString("result")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")
		prune, _ := cmd.Flags().GetDuration("prune")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		audit := policy.NewAuditStore(c.Store.DB())
		if prune > 0 {
			n, err := audit.PruneOldDecisions(prune)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d decision(s) older than %s\n", n, prune)
		}

		opts := policy.ListDecisionsOptions{RunID: runID, Result: result, Limit: limit}
		if since > 0 {
			opts.Since = time.Now().UTC().Add(-since)
		}
		decisions, err := audit.ListDecisions(opts)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), decisions)
		}
		if len(decisions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSubtle.Render("No decisions recorded."))
			return nil
		}

		t := &ui.Table{Headers: []string{"WHEN", "RESULT", "RUN", "VIOLATIONS"}, MaxWidth: 60}
		for _, d := range decisions {
			t.Rows = append(t.Rows, []string{
				d.EvaluatedAt.Local().Format("2006-01-02 15:04"),
				d.Result,
				d.RunID,
				strings.Join(d.Violations, "; "),
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyTestCmd, policyValidateCmd, policyDecisionsCmd)

	policyTestCmd.Flags().Bool("verbose-results", false, "also list passing tests")

	policyDecisionsCmd.Flags().String("run", "", "only decisions of this workflow run")
	policyDecisionsCmd.Flags().String("result", "", "allow or deny")
	policyDecisionsCmd.Flags().Duration("since", 0, "only decisions newer than this, e.g. 72h")
	policyDecisionsCmd.Flags().Int("limit", 20, "maximum number of decisions (0 = all)")
	policyDecisionsCmd.Flags().Duration("prune", 0, "delete decisions older than this first")
	policyDecisionsCmd.Flags().Bool("json", false, "output as JSON")
}
