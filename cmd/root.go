/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josephgoksu/FeatureWing/internal/config"
	"github.com/josephgoksu/FeatureWing/internal/logger"
	"github.com/josephgoksu/FeatureWing/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// logFormat selects the slog handler (text or json).
	logFormat string
	// version is the application version, overridden at build time.
	version = "0.1.0"
	// posthogAPIKey is injected at build time; telemetry.apiKey overrides it.
	posthogAPIKey = ""

	telemetryClient telemetry.Client = telemetry.NewNoopClient()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "featurewing",
	Short: "Track feature requests from idea to implementation",
	Long: `FeatureWing keeps a ledger of feature requests for your project.

Every request is validated by an LLM, compared against the features you
already have, and shown to you for approval before it is stored. Approved
relationships (builds_on, supersedes, fixes) are recorded alongside it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Setup(os.Stderr, logger.Options{
			Verbose: viper.GetBool("verbose"),
			Format:  viper.GetString("logFormat"),
		})
		logger.SetVersion(GetVersion())
		logger.SetCommand(cmd.CommandPath())
		logger.SetBasePath(config.GetDataDir())

		telemetryClient = newTelemetryClient()
		return nil
	},
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.HandlePanic()
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	cmd, err := rootCmd.ExecuteContextC(ctx)

	if cmd != nil && cmd != rootCmd {
		telemetryClient.Track(telemetry.EventCommandExecuted, telemetry.CommandProps(cmd.CommandPath(), time.Since(started), err))
	}
	_ = telemetryClient.Close()

	if err != nil {
		reportError(err)
	}
	return exitCode(err)
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .featurewing/config.yaml, then ~/.featurewing/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text or json)")

	// Bind persistent flags to Viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logFormat", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.Version = GetVersion()
}

// newTelemetryClient builds a PostHog client when the user opted in. Any
// failure to read the preference leaves telemetry off.
func newTelemetryClient() telemetry.Client {
	dir, err := config.GetGlobalConfigDir()
	if err != nil {
		return telemetry.NewNoopClient()
	}
	prefs, err := telemetry.NewStore(afero.NewOsFs(), dir).Load()
	if err != nil {
		LogError("telemetry preference unreadable", err)
		return telemetry.NewNoopClient()
	}

	key := posthogAPIKey
	if k := viper.GetString("telemetry.apiKey"); k != "" {
		key = k
	}
	return telemetry.New(telemetry.ClientConfig{
		APIKey:   key,
		Version:  GetVersion(),
		Config:   prefs,
		Endpoint: viper.GetString("telemetry.endpoint"),
	})
}
