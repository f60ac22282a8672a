package app

import (
	"context"
	"os/signal"
	"syscall"

	"link-watcher/internal/report"
)

// Watch builds the daily reports of the requested days, oldest first.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	begin, end := a.today(), a.today()
	if opts.Begin != nil && opts.End != nil {
		begin, end = *opts.Begin, *opts.End
	}

	svc, closeStore, err := a.newService(ctx, opts.HostsFile, opts.OutputDir)
	if err != nil {
		return err
	}
	defer closeStore()

	a.Logger.Info().Str("begin", begin.String()).Str("end", end.String()).Msg("watching links")
	return svc.WatchRange(ctx, begin, end)
}

// Alert aggregates stored reports into one alert and delivers it.
func (a *App) Alert(ctx context.Context, opts AlertOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeStore, err := a.newService(ctx, opts.HostsFile, "")
	if err != nil {
		return err
	}
	defer closeStore()

	days := opts.Days
	if days <= 0 {
		days = a.Config.Alert.Days
	}
	window := svc.WindowEndingAt(a.today().AddDays(-1), days)
	if opts.Begin != nil && opts.End != nil {
		window = report.Window{
			Begin:                *opts.Begin,
			End:                  *opts.End,
			TimeThresholdMinutes: a.Config.Alert.TimeThresholdMinutes,
		}
	}

	_, err = svc.Alert(ctx, window, opts.DryRun)
	return err
}
