/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/josephgoksu/FeatureWing/internal/app"
	"github.com/josephgoksu/FeatureWing/internal/git"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var featureCmd = &cobra.Command{
	Use:     "feature",
	Aliases: []string{"features", "f"},
	Short:   "Inspect and manage features in the ledger",
}

var featureListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List features, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		featureType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		features, err := app.NewFeatureApp(c).List(cmd.Context(), ledger.ListFilter{
			Status: ledger.Status(status),
			Type:   ledger.FeatureType(featureType),
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), features)
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderFeatureTable(features))
		return nil
	},
}

var featureShowCmd = &cobra.Command{
	Use:   "show <feature-id>",
	Short: "Show one feature with relations and documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		f, err := app.NewFeatureApp(c).Get(cmd.Context(), normalizeID(args[0]))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), f)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.RenderFeature(f))
		renderRelations(out, f)
		return nil
	},
}

func renderRelations(w io.Writer, f *ledger.Feature) {
	for _, r := range f.Relations {
		fmt.Fprintf(w, "  -> %s %s\n", r.Type, r.TargetID)
	}
	for _, r := range f.IncomingRelations {
		fmt.Fprintf(w, "  <- %s %s %s\n", r.FeatureID, r.Type, f.ID)
	}
}

var featureStatusCmd = &cobra.Command{
	Use:   "status <feature-id> <status>",
	Short: "Move a feature forward in its lifecycle",
	Long: `Move a feature to a new status. Statuses only move forward:

  requested -> in_review -> awaiting_implementation -> awaiting_validation -> validated

Any non-superseded feature may be marked superseded.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		id := normalizeID(args[0])
		status := ledger.Status(strings.ToLower(args[1]))
		if err := app.NewFeatureApp(c).SetStatus(cmd.Context(), id, status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", id, ui.StatusStyle(status).Render(string(status)))
		return nil
	},
}

var featureImplementCmd = &cobra.Command{
	Use:   "implement <feature-id>",
	Short: "Mark a feature validated with its commit and changed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		commit, _ := cmd.Flags().GetString("commit")
		files, _ := cmd.Flags().GetString("files")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		id := normalizeID(args[0])
		commit, changed, err := resolveCommit(git.NewClient(""), commit, splitList(files))
		if err != nil {
			return err
		}
		if err := app.NewFeatureApp(c).Implement(cmd.Context(), id, commit, changed); err != nil {
			return err
		}
		if commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked implemented at %s (%d files)\n", id, git.ShortHash(commit), len(changed))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked implemented\n", id)
		}
		return nil
	},
}

// resolveCommit defaults the commit to HEAD and the files to that commit's
// diff. Outside a git repository both stay as given.
func resolveCommit(client *git.Client, commit string, files []string) (string, []string, error) {
	if commit != "" && len(files) > 0 {
		return commit, files, nil
	}
	resolved, changed, err := client.ResolveCommit(commit, files)
	if errors.Is(err, git.ErrNotGitRepository) {
		return commit, files, nil
	}
	if err != nil {
		return "", nil, err
	}
	return resolved, changed, nil
}

var featureSupersedeCmd = &cobra.Command{
	Use:   "supersede <feature-id>",
	Short: "Mark a feature superseded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		id := normalizeID(args[0])
		if err := app.NewFeatureApp(c).Supersede(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s superseded\n", id)
		return nil
	},
}

var featureDocCmd = &cobra.Command{
	Use:   "doc",
	Short: "Read and write feature documents",
	Long: `Each feature holds at most one document per type:
feature_request, technical_spec, implementation_plan.`,
}

var featureDocSetCmd = &cobra.Command{
	Use:   "set <feature-id> <document-type>",
	Short: "Create or replace a document (reads stdin without --file)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var (
			data []byte
			err  error
		)
		if file != "" {
			data, err = os.ReadFile(file)
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		id := normalizeID(args[0])
		docType := ledger.DocumentType(args[1])
		if err := app.NewFeatureApp(c).SetDocument(cmd.Context(), id, docType, string(data)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s for %s\n", docType, id)
		return nil
	},
}

var featureDocGetCmd = &cobra.Command{
	Use:   "get <feature-id> <document-type>",
	Short: "Print a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		d, err := app.NewFeatureApp(c).GetDocument(cmd.Context(), normalizeID(args[0]), ledger.DocumentType(args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d.Content)
		return nil
	},
}

var featureLinkCmd = &cobra.Command{
	Use:   "link <feature-id> <relation> <target-id>",
	Short: "Record a relation: builds_on, supersedes, refactors or fixes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		id, target := normalizeID(args[0]), normalizeID(args[2])
		rel := ledger.RelationType(args[1])
		if err := app.NewFeatureApp(c).Link(cmd.Context(), id, rel, target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", id, rel, target)
		return nil
	},
}

var featureSearchCmd = &cobra.Command{
	Use:   "search <term>...",
	Short: "Keyword search over titles, descriptions and keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		features, err := app.NewFeatureApp(c).Search(cmd.Context(), args)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), features)
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderFeatureTable(features))
		return nil
	},
}

var featureRelatedCmd = &cobra.Command{
	Use:   "related <feature-id>",
	Short: "Find features similar to an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		related, err := app.NewFeatureApp(c).Related(cmd.Context(), normalizeID(args[0]))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), related)
		}
		if len(related) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSubtle.Render("No related features."))
			return nil
		}
		t := &ui.Table{Headers: []string{"ID", "SIMILARITY", "SUGGESTED", "TITLE"}, MaxWidth: 48}
		for _, r := range related {
			t.Rows = append(t.Rows, []string{r.FeatureID, fmt.Sprintf("%.2f", r.Similarity), string(r.Suggested), r.Title})
		}
		fmt.Fprint(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var featureExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole ledger as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		c, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		snap, err := app.NewFeatureApp(c).Export(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		return writeSnapshot(w, snap, format)
	},
}

func writeSnapshot(w io.Writer, snap *ledger.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return printJSON(w, snap)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (yaml or json)", format)
	}
}

func init() {
	rootCmd.AddCommand(featureCmd)
	featureCmd.AddCommand(featureListCmd, featureShowCmd, featureStatusCmd, featureImplementCmd,
		featureSupersedeCmd, featureDocCmd, featureLinkCmd, featureSearchCmd, featureRelatedCmd, featureExportCmd)
	featureDocCmd.AddCommand(featureDocSetCmd, featureDocGetCmd)

	featureListCmd.Flags().String("status", "", "filter by status")
	featureListCmd.Flags().String("type", "", "filter by feature type")
	featureListCmd.Flags().Int("limit", 0, "maximum number of features (0 = all)")

	for _, c := range []*cobra.Command{featureListCmd, featureShowCmd, featureSearchCmd, featureRelatedCmd} {
		c.Flags().Bool("json", false, "output as JSON")
	}

	featureDocSetCmd.Flags().StringP("file", "f", "", "read the document from a file")

	featureImplementCmd.Flags().String("commit", "", "commit hash that implemented the feature (default HEAD)")
	featureImplementCmd.Flags().String("files", "", "comma separated list of changed files (default: files in the commit)")

	featureExportCmd.Flags().String("format", "yaml", "yaml or json")
	featureExportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}
