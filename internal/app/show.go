package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"link-watcher/internal/report"
)

// Show prints one stored daily report.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx, "")
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := store.Get(ctx, opts.Date)
	if err != nil {
		return fmt.Errorf("load report %s: %w", opts.Date, err)
	}
	return writeReportTable(os.Stdout, r, a.location())
}

func writeReportTable(out io.Writer, r report.DailyReport, loc *time.Location) error {
	if len(r.Links) == 0 {
		fmt.Fprintf(out, "report %s has no links\n", r.Date)
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Link\tDir\tExceeded(min)\tPercentile(bps)\tBegin\tEnd\tMean(bps)\tMax(bps)")

	for _, name := range r.LinkNames() {
		entry := r.Links[name]
		if !entry.HasData() {
			fmt.Fprintf(writer, "%s\t-\t%s\t\t\t\t\t\n", name, report.NoDataToken)
			continue
		}
		for _, dir := range report.Directions {
			dr := entry.Direction(dir)
			pct := "-"
			if dr.Percentile.Valid {
				pct = formatDecimal(dr.Percentile.Decimal, 1)
			}
			if len(dr.Intervals) == 0 {
				fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t\t\t\t\n", name, dir, dr.TotalExceededMinutes, pct)
				continue
			}
			for i, iv := range dr.Intervals {
				total := ""
				if i == 0 {
					total = fmt.Sprintf("%d", dr.TotalExceededMinutes)
				}
				fmt.Fprintf(
					writer,
					"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					name,
					dir,
					total,
					pct,
					iv.Begin.In(loc).Format("15:04"),
					iv.End.In(loc).Format("15:04"),
					formatDecimal(iv.Mean, 1),
					formatDecimal(iv.Max, 1),
				)
			}
		}
	}

	return writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
