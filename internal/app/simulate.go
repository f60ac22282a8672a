package app

import (
	"context"
	"errors"

	"link-watcher/internal/aggregator"
	"link-watcher/internal/alerting"
	"link-watcher/internal/report"
)

// SimulateAlert 通过配置的告警通道发送一条合成告警，用于验证通道配置。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	msg, window := a.simulatedMessage(opts)
	severity, err := alerting.ParseSeverity(a.Config.Alert.Severity)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("link", opts.Link).Int("minutes", opts.Minutes).Msg("sending simulated alert")
	return notifier.Notify(ctx, alerting.Notification{
		Title:    "[simulation] " + msg.Title,
		Text:     msg.Text,
		Severity: severity,
		Window:   window,
	})
}

func (a *App) simulatedMessage(opts SimulateOptions) (aggregator.Message, report.Window) {
	yesterday := a.today().AddDays(-1)
	window := report.Window{
		Begin:                yesterday.AddDays(-(a.Config.Alert.Days - 1)),
		End:                  yesterday,
		TimeThresholdMinutes: a.Config.Alert.TimeThresholdMinutes,
	}

	res := aggregator.Result{
		Window:    window,
		Available: window.Days(),
		TimeExceeded: []aggregator.TimeExceededEntry{{
			Link:                 opts.Link,
			TotalExceededMinutes: opts.Minutes,
			DaysExceeded:         1,
		}},
	}
	return aggregator.Render(res, a.legend()), window
}
