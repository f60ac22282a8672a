package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"link-watcher/internal/app"
)

var (
	alertBegin  string
	alertEnd    string
	alertDays   int
	alertHosts  string
	alertDryRun bool
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Aggregate stored reports into an alert",
	Long:  "Aggregate the reports of the last --days days ending yesterday, print the alert and deliver it to the configured channels.",
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, end, err := parseDateRange(alertBegin, alertEnd)
		if err != nil {
			return err
		}
		if alertDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}

		opts := app.AlertOptions{
			Begin:     begin,
			End:       end,
			Days:      alertDays,
			HostsFile: alertHosts,
			DryRun:    alertDryRun,
		}

		return getApp().Alert(cmd.Context(), opts)
	},
}

func init() {
	alertCmd.Flags().StringVar(&alertBegin, "date-begin", "", "First day of the window (YYYY-MM-DD, requires --date-end)")
	alertCmd.Flags().StringVar(&alertEnd, "date-end", "", "Last day of the window (YYYY-MM-DD, requires --date-begin)")
	alertCmd.Flags().IntVar(&alertDays, "days", 0, "Window length ending yesterday (defaults to alert.days)")
	alertCmd.Flags().StringVar(&alertHosts, "hosts", "", "Hosts file overriding the configured inventory")
	alertCmd.Flags().BoolVar(&alertDryRun, "dry-run", false, "Print the alert without delivering it")
}
