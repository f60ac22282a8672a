package cli

import (
	"github.com/spf13/cobra"

	"link-watcher/internal/app"
)

var (
	watchBegin  string
	watchEnd    string
	watchHosts  string
	watchOutput string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build daily exceedance reports",
	Long:  "Scan every link for the given days (today by default) and store one report per day.",
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, end, err := parseDateRange(watchBegin, watchEnd)
		if err != nil {
			return err
		}

		opts := app.WatchOptions{
			Begin:     begin,
			End:       end,
			HostsFile: watchHosts,
			OutputDir: watchOutput,
		}

		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchBegin, "date-begin", "", "First day to scan (YYYY-MM-DD, requires --date-end)")
	watchCmd.Flags().StringVar(&watchEnd, "date-end", "", "Last day to scan (YYYY-MM-DD, requires --date-begin)")
	watchCmd.Flags().StringVar(&watchHosts, "hosts", "", "Hosts file overriding the configured inventory")
	watchCmd.Flags().StringVar(&watchOutput, "output", "", "Report directory overriding storage.dir")
}
