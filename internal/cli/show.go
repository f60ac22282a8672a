package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"link-watcher/internal/app"
	"link-watcher/internal/report"
)

var (
	showDate string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a stored daily report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showDate == "" {
			return fmt.Errorf("--date must be provided")
		}
		date, err := report.ParseDate(showDate)
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{Date: date})
	},
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "Report day (YYYY-MM-DD)")
}
