// Package watcher builds the daily exceedance report of every configured link.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"link-watcher/internal/fetcher"
	"link-watcher/internal/report"
	"link-watcher/internal/scanner"
)

// ErrDuplicateLink is matched by errors.Is when a link appears twice in one run.
var ErrDuplicateLink = errors.New("duplicate link")

// DuplicateLinkError names the link configured more than once.
type DuplicateLinkError struct {
	Name string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("link %s is duplicated", e.Name)
}

func (e *DuplicateLinkError) Unwrap() error {
	return ErrDuplicateLink
}

// Options tune report building.
type Options struct {
	WorkHourBegin int
	WorkHourEnd   int
	Location      *time.Location
	Percentile    int
	Workers       int
	Ignore        []string
	Scan          scanner.Options
}

// Observer is notified of per-link outcomes.
type Observer interface {
	DirectionScanned(link string, dir report.Direction, res scanner.Result)
	LinkWithoutData(link string)
}

type noopObserver struct{}

func (noopObserver) DirectionScanned(string, report.Direction, scanner.Result) {}
func (noopObserver) LinkWithoutData(string)                                   {}

// Builder assembles DailyReports from the sample source.
type Builder struct {
	source   fetcher.SampleSource
	opts     Options
	observer Observer
	logger   zerolog.Logger
}

// NewBuilder constructs a report builder.
func NewBuilder(source fetcher.SampleSource, opts Options, observer Observer, logger zerolog.Logger) *Builder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Percentile <= 0 {
		opts.Percentile = 95
	}
	if opts.Scan.Location == nil {
		opts.Scan.Location = opts.Location
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Builder{
		source:   source,
		opts:     opts,
		observer: observer,
		logger:   logger.With().Str("component", "report_builder").Logger(),
	}
}

// QueryRange is the sample window of date: its work hours in the configured zone.
func (b *Builder) QueryRange(date report.Date) report.TimeRange {
	return report.TimeRange{
		Begin: date.At(b.opts.WorkHourBegin, b.opts.Location),
		End:   date.At(b.opts.WorkHourEnd, b.opts.Location),
	}
}

// Build scans every link for date. A duplicated link name aborts the build with a
// *DuplicateLinkError and no report.
func (b *Builder) Build(ctx context.Context, date report.Date, links []report.LinkConfig) (report.DailyReport, error) {
	selected, err := b.selectLinks(links)
	if err != nil {
		return report.DailyReport{}, err
	}

	tr := b.QueryRange(date)
	b.logger.Info().Str("date", date.String()).
		Time("begin", tr.Begin).Time("end", tr.End).
		Int("links", len(selected)).
		Msg("building daily report")

	entries := make([]report.LinkEntry, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, link := range selected {
		i, link := i, link
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = b.scanLink(gctx, link, tr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.DailyReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return report.DailyReport{}, err
	}

	r := report.NewDailyReport(date)
	for i, link := range selected {
		r.Links[link.Name] = entries[i]
	}
	return r, nil
}

func (b *Builder) selectLinks(links []report.LinkConfig) ([]report.LinkConfig, error) {
	ignored := make(map[string]struct{}, len(b.opts.Ignore))
	for _, name := range b.opts.Ignore {
		ignored[name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(links))
	selected := make([]report.LinkConfig, 0, len(links))
	for _, link := range links {
		if _, dup := seen[link.Name]; dup {
			b.logger.Error().Str("link", link.Name).Msg("link is duplicated")
			return nil, &DuplicateLinkError{Name: link.Name}
		}
		seen[link.Name] = struct{}{}

		if _, skip := ignored[link.Name]; skip {
			b.logger.Debug().Str("link", link.Name).Msg("link ignored")
			continue
		}
		if err := link.Validate(); err != nil {
			b.logger.Warn().Err(err).Msg("invalid link configuration skipped")
			continue
		}
		selected = append(selected, link)
	}
	return selected, nil
}

func (b *Builder) scanLink(ctx context.Context, link report.LinkConfig, tr report.TimeRange) report.LinkEntry {
	var reports [2]report.DirectionReport
	for i, dir := range report.Directions {
		samples, err := b.source.FetchTraffic(ctx, link.Name, dir, tr)
		if err != nil {
			b.logger.Warn().Err(err).Str("link", link.Name).Str("direction", string(dir)).Msg("traffic query failed")
		}
		if len(samples) == 0 {
			b.logger.Warn().Str("link", link.Name).Str("direction", string(dir)).Msg("no data")
			b.observer.LinkWithoutData(link.Name)
			return report.NoDataEntry()
		}

		res := scanner.Scan(samples, link, b.opts.Scan)
		for _, rej := range res.Rejected {
			b.logger.Info().Str("link", link.Name).Str("direction", string(dir)).
				Time("begin", rej.Begin).Time("end", rej.End).
				Float64("mean_bps", rej.Mean).
				Msg("ignoring interval, link probably went down")
		}
		b.observer.DirectionScanned(link.Name, dir, res)

		dr := res.DirectionReport()
		pct, err := b.source.FetchPercentile(ctx, b.opts.Percentile, tr, link.Name, dir)
		if err != nil {
			b.logger.Warn().Err(err).Str("link", link.Name).Str("direction", string(dir)).Msg("percentile query failed")
		} else {
			dr.Percentile = decimal.NewNullDecimal(decimal.NewFromFloat(pct).Round(1))
		}
		reports[i] = dr
	}

	return report.DataEntry(reports[0], reports[1])
}
