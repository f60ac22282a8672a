package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"link-watcher/internal/app"
)

var (
	simulateLink    string
	simulateMinutes int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "发送一条合成告警以验证告警通道",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateLink == "" || simulateMinutes <= 0 {
			return errors.New("--link 不能为空且 --minutes 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Link:    simulateLink,
			Minutes: simulateMinutes,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateLink, "link", "simulated-link", "Link name shown in the alert")
	simulateCmd.Flags().IntVar(&simulateMinutes, "minutes", 120, "Exceeded minutes shown in the alert")
}
