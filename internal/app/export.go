package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"link-watcher/internal/report"
	"link-watcher/internal/storage"
)

// maxChartSeries bounds the links drawn in the PNG export.
const maxChartSeries = 8

var errNothingToChart = errors.New("no link exceeded its limit in the export window")

// Export renders stored reports as CSV and/or a PNG chart of daily exceeded minutes.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.End.Before(opts.Begin) {
		return errors.New("--date-begin must not be after --date-end")
	}

	store, closeStore, err := a.openStore(ctx, "")
	if err != nil {
		return err
	}
	defer closeStore()

	reports, err := loadReports(ctx, store, opts.Begin, opts.End)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		a.Logger.Info().Msg("no reports found for export window")
		return nil
	}
	a.Logger.Info().Int("reports", len(reports)).Msg("exporting reports")

	if opts.CSVPath != "" {
		if err := writeReportsCSV(opts.CSVPath, reports); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		err := writeReportsPNG(opts.PNGPath, reports, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight)
		if errors.Is(err, errNothingToChart) {
			a.Logger.Info().Str("reason", err.Error()).Msg("png skipped")
		} else if err != nil {
			return err
		}
	}

	return nil
}

func loadReports(ctx context.Context, store storage.ReportStore, begin, end report.Date) ([]report.DailyReport, error) {
	dates, err := store.List(ctx, begin, end)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	reports := make([]report.DailyReport, 0, len(dates))
	for _, d := range dates {
		r, err := store.Get(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("load report %s: %w", d, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func writeReportsCSV(path string, reports []report.DailyReport) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "link", "status", "rx_exceeded_minutes", "tx_exceeded_minutes", "total_exceeded_minutes", "rx_percentile_bps", "tx_percentile_bps"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range reports {
		for _, name := range r.LinkNames() {
			entry := r.Links[name]
			if !entry.HasData() {
				if err := writer.Write([]string{r.Date.String(), name, report.NoDataToken, "", "", "", "", ""}); err != nil {
					return err
				}
				continue
			}
			record := []string{
				r.Date.String(),
				name,
				"ok",
				strconv.Itoa(entry.RX.TotalExceededMinutes),
				strconv.Itoa(entry.TX.TotalExceededMinutes),
				strconv.Itoa(entry.TotalExceededMinutes()),
				percentileString(entry.RX),
				percentileString(entry.TX),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func percentileString(dr report.DirectionReport) string {
	if !dr.Percentile.Valid {
		return ""
	}
	return dr.Percentile.Decimal.String()
}

func writeReportsPNG(path string, reports []report.DailyReport, width, height int) error {
	if len(reports) < 2 {
		return errors.New("png export needs reports for at least two days")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(reports))
	totals := make(map[string][]float64)
	grand := make(map[string]int)
	for i, r := range reports {
		x[i] = r.Date.At(0, time.UTC)
		for _, name := range r.LinkNames() {
			entry := r.Links[name]
			if _, ok := totals[name]; !ok {
				totals[name] = make([]float64, len(reports))
			}
			if entry.HasData() {
				totals[name][i] = float64(entry.TotalExceededMinutes())
				grand[name] += entry.TotalExceededMinutes()
			}
		}
	}

	names := make([]string, 0, len(grand))
	maxY := 1.0
	for name, total := range grand {
		if total == 0 {
			continue
		}
		names = append(names, name)
		for _, v := range totals[name] {
			if v > maxY {
				maxY = v
			}
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if grand[names[i]] != grand[names[j]] {
			return grand[names[i]] > grand[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxChartSeries {
		names = names[:maxChartSeries]
	}

	if len(names) == 0 {
		return errNothingToChart
	}

	series := make([]chart.Series, 0, len(names))
	for _, name := range names {
		series = append(series, chart.TimeSeries{
			Name:    name,
			XValues: x,
			YValues: totals[name],
		})
	}

	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	minutesFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Exceeded minutes per day",
			ValueFormatter: minutesFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
