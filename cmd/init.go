/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/llm"
	"github.com/josephgoksu/FeatureWing/internal/telemetry"
	"github.com/josephgoksu/FeatureWing/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultProjectName = "Untitled Project"

// samplePolicy is written to policies/approval.rego on init. It is inert
// until policy.enabled is set or --policy is passed.
const samplePolicy = `package featurewing.approval

import rego.v1

# Reject requests that are near-certain duplicates of an existing feature.
deny contains msg if {
	some c in input.candidates
	c.relationship_type == "duplicate"
	c.confidence_score >= 0.95
	msg := sprintf("likely duplicate of %s (%s)", [c.feature_id, c.title])
}

# Validated features are done; superseding them needs a human.
deny contains msg if {
	some c in input.candidates
	c.relationship_type == "supersedes"
	featurewing.feature_status(c.feature_id) == "validated"
	msg := sprintf("%s is already validated", [c.feature_id])
}

warn contains msg if {
	input.validation.confidence_score < 0.8
	msg := "validation confidence is marginal"
}
`

// initOptions are the inputs of runInit.
type initOptions struct {
	Name        string
	Initials    string
	Provider    string
	Interactive bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a feature ledger in this project",
	Long: `Create the .featurewing directory at the project root with the
project identity (name and feature id initials), an empty ledger, and a
sample approval policy.

Examples:
  featurewing init
  featurewing init --name "Space Miner" --initials SM`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		initials, _ := cmd.Flags().GetString("initials")
		provider, _ := cmd.Flags().GetString("provider")

		opts := initOptions{
			Name:        name,
			Initials:    initials,
			Provider:    provider,
			Interactive: ui.IsInteractive(),
		}
		if err := runInit(cmd.OutOrStdout(), afero.NewOsFs(), config.GetDataDir(), opts); err != nil {
			return err
		}
		if opts.Interactive {
			askTelemetryConsent()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("name", "", "project name (default \"Untitled Project\")")
	initCmd.Flags().String("initials", "", "feature id prefix, 1-4 uppercase letters (derived from the name by default)")
	initCmd.Flags().String("provider", "", "LLM provider to write into the project config (openai, anthropic, gemini, ollama)")
}

// runInit creates the data directory. An already initialized project is
// left untouched.
func runInit(out io.Writer, fs afero.Fs, dataDir string, opts initOptions) error {
	if existing, err := config.LoadProjectFile(fs, dataDir); err == nil {
		fmt.Fprintf(out, "Already initialized: %s (%s) in %s\n", existing.ProjectName, existing.Initials(), dataDir)
		return nil
	} else if !errors.Is(err, config.ErrNotInitialized) {
		return err
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" && opts.Interactive {
		v, err := ui.PromptText(ui.TextPromptOptions{
			Title:   "Project name",
			Default: defaultProjectName,
		})
		if err != nil {
			return err
		}
		name = v
	}
	if name == "" {
		name = defaultProjectName
	}

	initials := strings.ToUpper(strings.TrimSpace(opts.Initials))
	if initials == "" {
		initials = config.DeriveInitials(name)
		if opts.Interactive {
			v, err := ui.PromptText(ui.TextPromptOptions{
				Title:   "Feature id initials",
				Hint:    "Feature ids look like " + ledger.FormatFeatureID(initials, 1),
				Default: initials,
			})
			if err != nil {
				return err
			}
			initials = strings.ToUpper(v)
		}
	}
	if !ledger.ValidInitials(initials) {
		return fmt.Errorf("invalid initials %q: must be 1 to 4 uppercase letters", initials)
	}

	provider := opts.Provider
	if provider == "" && opts.Interactive {
		v, err := ui.PromptSelect("LLM provider", providerOptions())
		if err != nil {
			return err
		}
		provider = v
	}
	if provider != "" {
		if _, err := llm.ValidateProvider(provider); err != nil {
			return err
		}
	}

	proj := &config.ProjectFile{
		ProjectName:     name,
		ProjectInitials: initials,
		CreatedAt:       time.Now().UTC(),
	}
	if err := config.SaveProjectFile(fs, dataDir, proj); err != nil {
		return err
	}
	if err := scaffoldDataDir(fs, dataDir, provider); err != nil {
		return err
	}

	// Opening creates the schema.
	store, err := ledger.Open(dataDir, initials)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	err = store.ValidateSchema(context.Background())
	_ = store.Close()
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	fmt.Fprintln(out, ui.RenderSuccessPanel("Initialized "+name, fmt.Sprintf(
		"Ledger:   %s\nIds:      %s\nPolicies: %s\n\nNext: featurewing request --title \"...\" --description \"...\"",
		filepath.Join(dataDir, ledger.DBFileName),
		ledger.FormatFeatureID(initials, 1),
		filepath.Join(dataDir, config.PoliciesDirName),
	)))
	return nil
}

// scaffoldDataDir writes the sample policy and, when a provider was chosen,
// a project config.yaml.
func scaffoldDataDir(fs afero.Fs, dataDir, provider string) error {
	policyDir := filepath.Join(dataDir, config.PoliciesDirName)
	if err := fs.MkdirAll(policyDir, 0o755); err != nil {
		return fmt.Errorf("create policies dir: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(policyDir, "approval.rego"), []byte(samplePolicy), 0o644); err != nil {
		return fmt.Errorf("write sample policy: %w", err)
	}
	if err := fs.MkdirAll(filepath.Join(dataDir, config.FeaturesDirName), 0o755); err != nil {
		return fmt.Errorf("create features dir: %w", err)
	}

	if provider == "" {
		return nil
	}
	cfgPath := filepath.Join(dataDir, config.ConfigFileName)
	if exists, _ := afero.Exists(fs, cfgPath); exists {
		return nil
	}
	data, err := yaml.Marshal(map[string]any{
		"llm": map[string]any{
			"provider": provider,
			"model":    llm.DefaultModelForProvider(provider),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return afero.WriteFile(fs, cfgPath, data, 0o644)
}

func providerOptions() []ui.Option {
	return []ui.Option{
		{ID: llm.ProviderOpenAI, Name: "OpenAI", Description: "needs OPENAI_API_KEY"},
		{ID: llm.ProviderAnthropic, Name: "Anthropic", Description: "needs ANTHROPIC_API_KEY"},
		{ID: llm.ProviderGemini, Name: "Gemini", Description: "needs GEMINI_API_KEY"},
		{ID: llm.ProviderOllama, Name: "Ollama", Description: "local, no key"},
	}
}

// askTelemetryConsent asks once per machine. Failures are silent.
func askTelemetryConsent() {
	dir, err := config.GetGlobalConfigDir()
	if err != nil {
		return
	}
	store := telemetry.NewStore(afero.NewOsFs(), dir)
	prefs, err := store.Load()
	if err != nil || !prefs.NeedsConsent() {
		return
	}

	choice, err := ui.PromptSelect("Share anonymous usage statistics?", []ui.Option{
		{ID: "yes", Name: "Yes", Description: "command names, durations and outcomes only"},
		{ID: "no", Name: "No"},
	})
	if err != nil {
		return
	}
	if choice == "yes" {
		prefs.Enable()
	} else {
		prefs.Disable()
	}
	if err := store.Save(prefs); err != nil {
		fmt.Fprintf(os.Stderr, "could not save telemetry preference: %v\n", err)
	}
}
