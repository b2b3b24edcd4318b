/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const recentFeatures = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project identity and ledger statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		fa := app.NewFeatureApp(c)
		stats, err := fa.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, map[string]any{
				"project_name":     c.Project.ProjectName,
				"project_initials": c.Project.Initials(),
				"ledger":           c.Store.Path(),
				"llm_provider":     c.LLMCfg.Provider,
				"statistics":       stats,
			})
		}

		ui.RenderPageHeader(out, c.Project.ProjectName, fmt.Sprintf("ids %s  ledger %s", ledger.FormatFeatureID(c.Project.Initials(), 1), c.Store.Path()))
		fmt.Fprint(out, ui.RenderStatistics(stats))

		if !viper.GetBool("verbose") {
			return nil
		}
		if stats.Total > 0 {
			recent, err := fa.List(cmd.Context(), ledger.ListFilter{Limit: recentFeatures})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\n"+ui.StyleSectionTitle.Render("Recent"))
			fmt.Fprint(out, ui.RenderFeatureTable(recent))
		}
		fmt.Fprintln(out, "\n"+ui.StyleSectionTitle.Render("Request workflow"))
		fmt.Fprint(out, workflowTable().Render())
		return nil
	},
}

// workflowTable lists the request state machine's transitions in the order
// they are tried.
func workflowTable() *ui.Table {
	t := &ui.Table{Headers: []string{"FROM", "WHEN", "TO"}}
	for _, r := range workflow.Rules() {
		to := string(r.To)
		if r.Outcome != "" {
			to += " (" + string(r.Outcome) + ")"
		}
		t.Rows = append(t.Rows, []string{string(r.From), r.When, to})
	}
	return t
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "output as JSON")
}
