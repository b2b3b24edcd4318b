/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build embeddings for feature request documents",
	Long: `Embed every feature_request document with the configured provider so
similarity search uses vectors instead of keyword overlap. Documents whose
content has not changed since they were embedded are skipped unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		spinner := ui.NewSpinner(os.Stderr, " Embedding documents...")
		spinner.Start()
		stats, err := app.NewFeatureApp(c).Index(cmd.Context(), force)
		spinner.Stop()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d, skipped %d, failed %d (model %s)\n",
			stats.Indexed, stats.Skipped, stats.Failed, c.LLMCfg.EmbeddingModel)
		if stats.Failed > 0 {
			return fmt.Errorf("%d document(s) failed to embed", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Bool("force", false, "re-embed unchanged documents")
}
