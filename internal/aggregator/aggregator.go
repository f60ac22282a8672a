// Package aggregator folds a window of daily reports into one ranked alert.
package aggregator

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"link-watcher/internal/fetcher"
	"link-watcher/internal/inventory"
	"link-watcher/internal/report"
	"link-watcher/internal/storage"
)

// DefaultPercentileFloorBPS is the percentile at or below which a link counts as idle.
const DefaultPercentileFloorBPS = 1_000_000

// Options tune an aggregation run.
type Options struct {
	Percentile         int
	TopN               int
	PercentileFloorBPS float64
	WorkHourBegin      int
	WorkHourEnd        int
	Location           *time.Location
}

// TimeExceededEntry accumulates the days a link spent over the time threshold.
type TimeExceededEntry struct {
	Link                 string
	TotalExceededMinutes int
	DaysExceeded         int
}

// NoDataEntry counts the days a link had no samples.
type NoDataEntry struct {
	Link string
	Days int
}

// PercentileEntry is a link's utilization over the window.
type PercentileEntry struct {
	Link           string
	PercentileBPS  float64
	CapacityBPS    float64
	UtilizationPct decimal.Decimal
}

// Result is everything the alert message is rendered from.
type Result struct {
	Window       report.Window
	Available    []report.Date
	Missing      []report.Date
	TimeExceeded []TimeExceededEntry
	NoData       []NoDataEntry
	Percentiles  []PercentileEntry
	Capacities   map[string]float64
}

// Aggregator reads reports from the store and percentiles from the sample source.
type Aggregator struct {
	store  storage.ReportStore
	source fetcher.SampleSource
	links  []report.LinkConfig
	opts   Options
	logger zerolog.Logger
}

// New builds an aggregator. source and links may be nil, in which case the percentile
// ranking is empty and capacity annotations are omitted.
func New(store storage.ReportStore, source fetcher.SampleSource, links []report.LinkConfig, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.Percentile <= 0 {
		opts.Percentile = 95
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.PercentileFloorBPS <= 0 {
		opts.PercentileFloorBPS = DefaultPercentileFloorBPS
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Aggregator{
		store:  store,
		source: source,
		links:  links,
		opts:   opts,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Run aggregates the window. Unreadable days are reported as missing rather than
// failing the run.
func (a *Aggregator) Run(ctx context.Context, w report.Window) (Result, error) {
	if err := w.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		Window:     w,
		Capacities: inventory.Capacities(a.links),
	}

	reports := make([]report.DailyReport, 0, len(w.Days()))
	for _, date := range w.Days() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r, err := a.store.Get(ctx, date)
		if err != nil {
			if !errors.Is(err, storage.ErrReportNotFound) {
				a.logger.Error().Err(err).Str("date", date.String()).Msg("failed to read report")
			} else {
				a.logger.Warn().Str("date", date.String()).Msg("report missing")
			}
			res.Missing = append(res.Missing, date)
			continue
		}
		res.Available = append(res.Available, date)
		reports = append(reports, r)
	}

	res.TimeExceeded, res.NoData = accumulate(reports, w.TimeThresholdMinutes)

	ranking, err := a.rank(ctx, w)
	if err != nil {
		return Result{}, err
	}
	res.Percentiles = ranking

	a.logger.Info().
		Int("available", len(res.Available)).
		Int("missing", len(res.Missing)).
		Int("exceeded", len(res.TimeExceeded)).
		Int("no_data", len(res.NoData)).
		Msg("window aggregated")
	return res, nil
}

// accumulate counts, per link, the days whose rx+tx total reached threshold. Entries
// are ordered by total descending, ties kept in first-encounter order.
func accumulate(reports []report.DailyReport, threshold int) ([]TimeExceededEntry, []NoDataEntry) {
	index := make(map[string]int)
	var entries []TimeExceededEntry
	noDataIndex := make(map[string]int)
	var noData []NoDataEntry

	for _, r := range reports {
		for _, name := range r.LinkNames() {
			entry := r.Links[name]
			if !entry.HasData() {
				if i, ok := noDataIndex[name]; ok {
					noData[i].Days++
				} else {
					noDataIndex[name] = len(noData)
					noData = append(noData, NoDataEntry{Link: name, Days: 1})
				}
				continue
			}

			total := entry.TotalExceededMinutes()
			if total == 0 {
				continue
			}
			i, ok := index[name]
			if !ok {
				i = len(entries)
				index[name] = i
				entries = append(entries, TimeExceededEntry{Link: name})
			}
			if total >= threshold {
				entries[i].TotalExceededMinutes += total
				entries[i].DaysExceeded++
			}
		}
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.TotalExceededMinutes > 0 {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].TotalExceededMinutes > kept[j].TotalExceededMinutes
	})
	return kept, noData
}

// rank selects the TopN most utilized links and returns them least utilized first, so
// the most critical link closes the list.
func (a *Aggregator) rank(ctx context.Context, w report.Window) ([]PercentileEntry, error) {
	if a.source == nil || len(a.links) == 0 {
		return nil, nil
	}

	tr := report.TimeRange{
		Begin: w.Begin.At(a.opts.WorkHourBegin, a.opts.Location),
		End:   w.End.At(a.opts.WorkHourEnd, a.opts.Location),
	}

	var candidates []PercentileEntry
	for _, link := range a.links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if link.CapacityBPS <= 0 {
			continue
		}

		pct, ok := a.linkPercentile(ctx, link.Name, tr)
		if !ok || pct <= a.opts.PercentileFloorBPS {
			continue
		}
		candidates = append(candidates, PercentileEntry{
			Link:           link.Name,
			PercentileBPS:  pct,
			CapacityBPS:    link.CapacityBPS,
			UtilizationPct: decimal.NewFromFloat(pct / link.CapacityBPS * 100).Round(2),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UtilizationPct.GreaterThan(candidates[j].UtilizationPct)
	})
	if len(candidates) > a.opts.TopN {
		candidates = candidates[:a.opts.TopN]
	}
	for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates, nil
}

// linkPercentile returns the greater of the rx and tx percentiles.
func (a *Aggregator) linkPercentile(ctx context.Context, link string, tr report.TimeRange) (float64, bool) {
	best, found := 0.0, false
	for _, dir := range report.Directions {
		v, err := a.source.FetchPercentile(ctx, a.opts.Percentile, tr, link, dir)
		if err != nil {
			a.logger.Warn().Err(err).Str("link", link).Str("direction", string(dir)).Msg("percentile unavailable")
			continue
		}
		if math.IsNaN(v) {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}
