package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"link-watcher/internal/report"
)

func sampleReport(date report.Date) report.DailyReport {
	r := report.NewDailyReport(date)
	begin := date.At(9, time.UTC)
	r.Links["site-a"] = report.DataEntry(
		report.DirectionReport{
			TotalExceededMinutes: 30,
			Intervals: []report.Interval{{
				Begin:           begin,
				End:             begin.Add(30 * time.Minute),
				ExceededMinutes: 30,
				Mean:            decimal.RequireFromString("900000000"),
				Max:             decimal.RequireFromString("950000000"),
				Min:             decimal.RequireFromString("850000000"),
			}},
			Percentile: decimal.NewNullDecimal(decimal.NewFromInt(870_000_000)),
		},
		report.DirectionReport{Intervals: []report.Interval{}},
	)
	r.Links["site-b"] = report.NoDataEntry()
	return r
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), 2)
	date := report.Date{Year: 2024, Month: time.March, Day: 4}
	want := sampleReport(date)

	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, err := os.ReadFile(store.Path(date))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"site-b": "no_data"`) {
		t.Fatalf("no-data entry should be stored as a string sentinel:\n%s", raw)
	}

	got, err := store.Get(ctx, date)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date != date {
		t.Fatalf("date = %s", got.Date)
	}
	if got.Links["site-b"].HasData() {
		t.Fatal("site-b should have no data")
	}
	a := got.Links["site-a"]
	if !a.HasData() || a.RX.TotalExceededMinutes != 30 || len(a.RX.Intervals) != 1 {
		t.Fatalf("unexpected site-a entry %+v", a)
	}
	if !a.RX.Intervals[0].Mean.Equal(decimal.NewFromInt(900_000_000)) {
		t.Fatalf("mean = %s", a.RX.Intervals[0].Mean)
	}
	if !a.RX.Percentile.Valid || a.TX.Percentile.Valid {
		t.Fatalf("percentile validity lost: rx=%v tx=%v", a.RX.Percentile.Valid, a.TX.Percentile.Valid)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir(), 0)
	_, err := store.Get(context.Background(), report.Date{Year: 2024, Month: time.March, Day: 5})
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestFileStoreRejectsMismatchedDate(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), 0)
	day := report.Date{Year: 2024, Month: time.March, Day: 4}
	if err := store.Put(ctx, sampleReport(day)); err != nil {
		t.Fatal(err)
	}
	other := day.AddDays(1)
	if err := os.Rename(store.Path(day), store.Path(other)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, other); err == nil || errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected a date mismatch error, got %v", err)
	}
}

func TestFileStoreListAndPrune(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), 0)
	first := report.Date{Year: 2024, Month: time.February, Day: 28}
	for i := 0; i < 4; i++ {
		if err := store.Put(ctx, sampleReport(first.AddDays(i))); err != nil {
			t.Fatal(err)
		}
	}

	dates, err := store.List(ctx, first.AddDays(1), first.AddDays(2))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dates) != 2 || dates[0] != first.AddDays(1) || dates[1] != first.AddDays(2) {
		t.Fatalf("unexpected dates %v", dates)
	}

	removed, err := store.DeleteReportsBefore(ctx, first.AddDays(2))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d", removed)
	}
	if _, err := store.Get(ctx, first); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("pruned report still readable: %v", err)
	}
}
