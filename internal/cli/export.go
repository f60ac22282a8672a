package cli

import (
	"github.com/spf13/cobra"

	"link-watcher/internal/app"
)

var (
	exportBegin   string
	exportEnd     string
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored reports as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, end, err := parseDateRange(exportBegin, exportEnd)
		if err != nil {
			return err
		}
		if begin == nil {
			return errUnpairedDates
		}

		opts := app.ExportOptions{
			Begin:   *begin,
			End:     *end,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportBegin, "date-begin", "", "First day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportEnd, "date-end", "", "Last day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
