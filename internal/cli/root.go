package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"link-watcher/internal/app"
	"link-watcher/internal/config"
	"link-watcher/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	timezone  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "linkwatcher",
	Short: "Detect sustained bandwidth exceedance on network links",
	Long: `linkwatcher scans per-link traffic samples for periods above each link's limit,
stores one report per day and aggregates the stored days into a single alert.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadApp,
}

// loadApp builds the shared App once per process. Flags override the config file.
func loadApp(cmd *cobra.Command, args []string) error {
	if appHandle != nil {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if timezone != "" {
		cfg.App.Timezone = timezone
		if _, err := cfg.Location(); err != nil {
			return fmt.Errorf("--timezone: %w", err)
		}
	}

	logger := logging.NewLogger(cfg.Logging)
	logger.Debug().Str("command", cmd.Name()).Str("config", cfgFile).Msg("configuration loaded")
	appHandle = app.NewApp(cfg, logger)
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file (default ./config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "Override logging.level")
	flags.StringVar(&logFormat, "log-format", "", "Override logging.format (json|console)")
	flags.StringVar(&timezone, "timezone", "", "Override app.timezone, e.g. America/Sao_Paulo")

	rootCmd.AddCommand(
		watchCmd,
		alertCmd,
		runCmd,
		showCmd,
		exportCmd,
		simulateCmd,
		versionCmd,
	)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
