/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage FeatureWing's anonymous telemetry settings.

FeatureWing can send anonymous usage statistics: command names, durations
and workflow outcomes. Feature titles, descriptions and arguments are never
sent.`,
}

func telemetryStore() (*telemetry.Store, error) {
	dir, err := config.GetGlobalConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return telemetry.NewStore(afero.NewOsFs(), dir), nil
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := telemetryStore()
		if err != nil {
			return err
		}
		prefs, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to read telemetry status: %w", err)
		}
		printTelemetryStatus(cmd.OutOrStdout(), prefs)
		return nil
	},
}

func printTelemetryStatus(w io.Writer, prefs *telemetry.Config) {
	switch {
	case prefs.NeedsConsent():
		fmt.Fprintln(w, "Telemetry: not configured (off)")
		fmt.Fprintln(w, "   To enable: featurewing telemetry enable")
	case prefs.IsEnabled():
		fmt.Fprintln(w, "Telemetry: enabled")
		fmt.Fprintf(w, "   Anonymous ID: %s\n", prefs.AnonymousID)
		fmt.Fprintln(w, "   To disable: featurewing telemetry disable")
	default:
		fmt.Fprintln(w, "Telemetry: disabled")
		fmt.Fprintln(w, "   To enable: featurewing telemetry enable")
	}
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(cmd.OutOrStdout(), true)
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(cmd.OutOrStdout(), false)
	},
}

func setTelemetry(w io.Writer, enabled bool) error {
	store, err := telemetryStore()
	if err != nil {
		return err
	}
	prefs, err := store.Load()
	if err != nil {
		return err
	}
	if enabled {
		prefs.Enable()
	} else {
		prefs.Disable()
	}
	if err := store.Save(prefs); err != nil {
		return fmt.Errorf("failed to save telemetry preference: %w", err)
	}
	if enabled {
		fmt.Fprintln(w, "Telemetry enabled. Thank you for helping improve FeatureWing!")
	} else {
		fmt.Fprintln(w, "Telemetry disabled.")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd, telemetryEnableCmd, telemetryDisableCmd)
}
