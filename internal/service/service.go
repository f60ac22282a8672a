package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/aggregator"
	"link-watcher/internal/alerting"
	"link-watcher/internal/fetcher"
	"link-watcher/internal/inventory"
	"link-watcher/internal/metrics"
	"link-watcher/internal/report"
	"link-watcher/internal/storage"
	"link-watcher/internal/watcher"
)

// Options configure the service.
type Options struct {
	Location      *time.Location
	SnapshotPath  string
	RetentionDays int
	LockKey       int64
	MetricsPath   string

	AlertDays            int
	TimeThresholdMinutes int
	// AlertWeekday triggers the weekly alert in Tick; negative disables it.
	AlertWeekday time.Weekday
	Severity     alerting.Severity
	Aggregator   aggregator.Options
	Legend       aggregator.Legend

	// Out receives every rendered alert. Defaults to stdout.
	Out io.Writer
}

// Service orchestrates report building, persistence, and alerting.
type Service struct {
	opts      Options
	builder   *watcher.Builder
	inventory inventory.Inventory
	store     storage.ReportStore
	source    fetcher.SampleSource
	notifier  alerting.Notifier
	metrics   *metrics.Recorder
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger
}

// New constructs the watcher service. notifier and recorder may be nil.
func New(opts Options, builder *watcher.Builder, inv inventory.Inventory, store storage.ReportStore, source fetcher.SampleSource, notifier alerting.Notifier, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.AlertDays <= 0 {
		opts.AlertDays = 7
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		opts:      opts,
		builder:   builder,
		inventory: inv,
		store:     store,
		source:    source,
		notifier:  notifier,
		metrics:   recorder,
		locker:    locker,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// WatchRange builds and stores one report per day from begin to end. Each day is
// written before the next one starts.
func (s *Service) WatchRange(ctx context.Context, begin, end report.Date) error {
	if end.Before(begin) {
		return fmt.Errorf("date begin %s is after date end %s", begin, end)
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Warn().Msg("skip watch because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	links, err := s.inventory.ListLinks(ctx)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	if s.opts.SnapshotPath != "" {
		if err := inventory.WriteSnapshot(s.opts.SnapshotPath, links); err != nil {
			s.logger.Warn().Err(err).Str("path", s.opts.SnapshotPath).Msg("failed to write hosts snapshot")
		}
	}

	for _, date := range report.DateRange(begin, end) {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := s.builder.Build(ctx, date, links)
		if err != nil {
			return fmt.Errorf("build report %s: %w", date, err)
		}
		if err := s.store.Put(ctx, r); err != nil {
			return fmt.Errorf("store report %s: %w", date, err)
		}
		s.metrics.ReportsWrittenTotal.Inc()
		s.logger.Info().Str("date", date.String()).Int("links", len(r.Links)).Msg("daily report written")
	}

	s.prune(ctx, end)
	s.metrics.MarkSuccess("watch", time.Now())
	s.flushMetrics()
	return nil
}

// Alert aggregates the window, prints the message, and delivers it unless dryRun.
// Delivery failures are logged and do not fail the call.
func (s *Service) Alert(ctx context.Context, w report.Window, dryRun bool) (aggregator.Message, error) {
	links := s.alertLinks(ctx)

	agg := aggregator.New(s.store, s.source, links, s.opts.Aggregator, s.logger)
	res, err := agg.Run(ctx, w)
	if err != nil {
		return aggregator.Message{}, err
	}
	s.metrics.MissingReports.Set(float64(len(res.Missing)))

	msg := aggregator.Render(res, s.opts.Legend)
	fmt.Fprintf(s.opts.Out, "%s\n\n%s\n", msg.Title, msg.Text)

	switch {
	case dryRun:
		s.logger.Info().Msg("dry run, alert not delivered")
	case s.notifier == nil:
		s.logger.Warn().Msg("no alert channel configured")
	default:
		note := alerting.Notification{Title: msg.Title, Text: msg.Text, Severity: s.opts.Severity, Window: w}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.metrics.AlertsSentTotal.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).Msg("failed to dispatch alert")
		} else {
			s.metrics.AlertsSentTotal.WithLabelValues("sent").Inc()
		}
	}

	s.metrics.MarkSuccess("alert", time.Now())
	s.flushMetrics()
	return msg, nil
}

// Tick is the daily job of the run daemon: watch yesterday, then alert on the
// configured weekday.
func (s *Service) Tick(ctx context.Context, bucket time.Time) error {
	local := bucket.In(s.opts.Location)
	yesterday := report.DateOf(local).AddDays(-1)

	var errs []error
	if err := s.WatchRange(ctx, yesterday, yesterday); err != nil {
		errs = append(errs, fmt.Errorf("watch: %w", err))
	}

	if s.opts.AlertWeekday >= 0 && local.Weekday() == s.opts.AlertWeekday {
		if _, err := s.Alert(ctx, s.WindowEndingAt(yesterday, s.opts.AlertDays), false); err != nil {
			errs = append(errs, fmt.Errorf("alert: %w", err))
		}
	}
	return errors.Join(errs...)
}

// WindowEndingAt returns the days-long alert window whose last day is end.
func (s *Service) WindowEndingAt(end report.Date, days int) report.Window {
	if days <= 0 {
		days = s.opts.AlertDays
	}
	return report.Window{
		Begin:                end.AddDays(-(days - 1)),
		End:                  end,
		TimeThresholdMinutes: s.opts.TimeThresholdMinutes,
	}
}

// alertLinks lists the inventory for ranking and capacity annotation. When the
// inventory is unreachable the last snapshot written by watch is used instead.
func (s *Service) alertLinks(ctx context.Context) []report.LinkConfig {
	links, err := s.inventory.ListLinks(ctx)
	if err == nil {
		return links
	}
	s.logger.Warn().Err(err).Msg("inventory unavailable")

	if s.opts.SnapshotPath == "" {
		return nil
	}
	snapshot := inventory.NewFile(s.opts.SnapshotPath, inventory.Defaults{}, s.logger)
	links, err = snapshot.ListLinks(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.opts.SnapshotPath).Msg("hosts snapshot unavailable, capacities omitted")
		return nil
	}
	return links
}

func (s *Service) prune(ctx context.Context, end report.Date) {
	if s.opts.RetentionDays <= 0 {
		return
	}
	pruner, ok := s.store.(storage.Pruner)
	if !ok {
		return
	}
	cutoff := end.AddDays(-s.opts.RetentionDays)
	removed, err := pruner.DeleteReportsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Str("before", cutoff.String()).Msg("failed to prune reports")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Str("before", cutoff.String()).Msg("old reports pruned")
	}
}

func (s *Service) flushMetrics() {
	if err := s.metrics.WriteTextfile(s.opts.MetricsPath); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
