package cli

import (
	"github.com/spf13/cobra"

	"link-watcher/internal/app"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch yesterday every day and send the weekly alert",
	Long: `Runs as a daemon: each day shortly after local midnight the previous day is
scanned and stored, and on the configured weekday the alert for the last days is sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Once: runOnce})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single tick now and exit")
}
