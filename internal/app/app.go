package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/aggregator"
	"link-watcher/internal/alerting"
	"link-watcher/internal/config"
	"link-watcher/internal/fetcher"
	"link-watcher/internal/inventory"
	"link-watcher/internal/metrics"
	"link-watcher/internal/report"
	"link-watcher/internal/scanner"
	"link-watcher/internal/scheduler"
	"link-watcher/internal/service"
	"link-watcher/internal/storage"
	"link-watcher/internal/watcher"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// WatchOptions configure the watch command. Nil dates default to today.
type WatchOptions struct {
	Begin     *report.Date
	End       *report.Date
	HostsFile string
	OutputDir string
}

// AlertOptions configure the alert command. Nil dates select the Days days ending
// yesterday.
type AlertOptions struct {
	Begin     *report.Date
	End       *report.Date
	Days      int
	HostsFile string
	DryRun    bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Date report.Date
}

// ExportOptions hold parameters for exporting exceeded time per link.
type ExportOptions struct {
	Begin   report.Date
	End     report.Date
	PNGPath string
	CSVPath string
}

// SimulateOptions describe the synthetic alert sent by simulate-alert.
type SimulateOptions struct {
	Link    string
	Minutes int
}

func (a *App) location() *time.Location {
	loc, err := a.Config.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

// today is the current calendar day in the configured zone.
func (a *App) today() report.Date {
	return report.DateOf(time.Now().In(a.location()))
}

func (a *App) newSource() fetcher.SampleSource {
	cfg := a.Config.Influx
	return fetcher.NewInflux(fetcher.InfluxOptions{
		BaseURL:       cfg.URL,
		Database:      cfg.Database,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Measurement:   cfg.Measurement,
		HostTag:       cfg.HostTag,
		MetricTag:     cfg.MetricTag,
		MetricPrefix:  cfg.MetricPrefix,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		UserAgent:     cfg.UserAgent,
	}, a.Logger)
}

// newInventory honours a --hosts override before the configured source.
func (a *App) newInventory(hostsOverride string) inventory.Inventory {
	defaults := inventory.Defaults{
		MaxTrafficFraction: a.Config.Watch.DefaultMaxTrafficFraction,
		HysteresisFraction: a.Config.Watch.DefaultHysteresisFraction,
	}
	if hostsOverride != "" {
		return inventory.NewFile(hostsOverride, defaults, a.Logger)
	}
	if a.Config.Inventory.Source == config.InventoryNetBox {
		nb := a.Config.Inventory.NetBox
		return inventory.NewNetBox(inventory.NetBoxOptions{
			BaseURL:     nb.URL,
			Token:       nb.Token,
			CircuitType: nb.CircuitType,
			IgnoreSites: nb.IgnoreSites,
			Timeout:     nb.Timeout,
		}, defaults, a.Logger)
	}
	return inventory.NewFile(a.Config.Inventory.HostsFile, defaults, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}

	timeout := a.Config.Alerting.Timeout
	var channels []alerting.Notifier
	if cfg := a.Config.Alerting.Alerta; cfg.Enabled {
		severity, _ := alerting.ParseSeverity(a.Config.Alert.Severity)
		channels = append(channels, alerting.NewAlertaNotifier(alerting.AlertaOptions{
			URL:             cfg.URL,
			APIKey:          cfg.APIKey,
			Environment:     cfg.Environment,
			Resource:        cfg.Resource,
			Severity:        severity,
			TelegramChatIDs: a.Config.Alerting.Telegram.ChatIDs,
			Emails:          cfg.Emails,
			Timeout:         timeout,
		}, a.Logger))
	}
	if cfg := a.Config.Alerting.Telegram; cfg.Enabled {
		channels = append(channels, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatIDs, cfg.APIBase, timeout, a.Logger))
	}

	multi := alerting.NewMulti(a.Logger, channels...)
	if multi.Len() == 0 {
		return nil
	}
	return multi
}

// openStore returns the configured report store. outputOverride replaces the file
// store directory.
func (a *App) openStore(ctx context.Context, outputOverride string) (storage.ReportStore, func(), error) {
	if a.Config.Storage.Backend == config.StoragePostgres {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	dir := a.Config.Storage.Dir
	if outputOverride != "" {
		dir = outputOverride
	}
	return storage.NewFileStore(dir, a.Config.Storage.Indent), func() {}, nil
}

// newService wires every collaborator. The returned closer releases the store.
func (a *App) newService(ctx context.Context, hostsOverride, outputOverride string) (*service.Service, func(), error) {
	store, closeStore, err := a.openStore(ctx, outputOverride)
	if err != nil {
		return nil, nil, err
	}

	loc := a.location()
	recorder := metrics.NewRecorder()
	source := a.newSource()

	builder := watcher.NewBuilder(source, watcher.Options{
		WorkHourBegin: a.Config.Watch.WorkHourBegin,
		WorkHourEnd:   a.Config.Watch.WorkHourEnd,
		Location:      loc,
		Percentile:    a.Config.Watch.Percentile,
		Workers:       a.Config.Watch.Workers,
		Ignore:        a.Config.Watch.Ignore,
		Scan: scanner.Options{
			Cadence:     a.Config.Watch.Cadence,
			SpikeFactor: a.Config.Watch.SpikeFactor,
			Location:    loc,
		},
	}, recorder, a.Logger)

	weekday, err := a.Config.AlertWeekday()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	severity, err := alerting.ParseSeverity(a.Config.Alert.Severity)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("alert.severity: %w", err)
	}

	svc := service.New(service.Options{
		Location:             loc,
		SnapshotPath:         a.Config.Inventory.SnapshotPath,
		RetentionDays:        a.Config.Storage.RetentionDays,
		LockKey:              a.Config.Scheduler.AdvisoryLockKey,
		MetricsPath:          a.Config.Metrics.TextfilePath,
		AlertDays:            a.Config.Alert.Days,
		TimeThresholdMinutes: a.Config.Alert.TimeThresholdMinutes,
		AlertWeekday:         weekday,
		Severity:             severity,
		Aggregator: aggregator.Options{
			Percentile:         a.Config.Watch.Percentile,
			TopN:               a.Config.Alert.TopN,
			PercentileFloorBPS: a.Config.Alert.PercentileFloorBPS,
			WorkHourBegin:      a.Config.Watch.WorkHourBegin,
			WorkHourEnd:        a.Config.Watch.WorkHourEnd,
			Location:           loc,
		},
		Legend: a.legend(),
	}, builder, a.newInventory(hostsOverride), store, source, a.newNotifier(), recorder, a.Logger)

	return svc, closeStore, nil
}

func (a *App) legend() aggregator.Legend {
	return aggregator.Legend{
		Percentile:         a.Config.Watch.Percentile,
		MaxTrafficFraction: a.Config.Watch.DefaultMaxTrafficFraction,
		HysteresisFraction: a.Config.Watch.DefaultHysteresisFraction,
	}
}

// RunOptions configure the run command.
type RunOptions struct {
	// Once runs a single tick for the current time and returns.
	Once bool
}

// Run executes the daily watch and weekly alert loop until interrupted.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeStore, err := a.newService(ctx, "", "")
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Once {
		return svc.Tick(ctx, time.Now())
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Offset:       a.Config.Scheduler.Offset,
		Location:     a.location(),
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	a.Logger.Info().Msg("starting link watcher daemon")
	err = sched.Run(ctx, svc.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("link watcher daemon stopped")
	return nil
}
