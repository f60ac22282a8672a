package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/fetcher"
	"link-watcher/internal/report"
	"link-watcher/internal/scanner"
)

type fakeSource struct {
	mu          sync.Mutex
	traffic     map[string][]report.Sample
	percentiles map[string]float64
	failTraffic map[string]bool
	ranges      []report.TimeRange
}

func key(link string, dir report.Direction) string {
	return link + "/" + string(dir)
}

func (f *fakeSource) FetchTraffic(ctx context.Context, link string, dir report.Direction, tr report.TimeRange) ([]report.Sample, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, tr)
	f.mu.Unlock()
	if f.failTraffic[key(link, dir)] {
		return []report.Sample{}, errors.New("tsdb unreachable")
	}
	if s, ok := f.traffic[key(link, dir)]; ok {
		return s, nil
	}
	return []report.Sample{}, nil
}

func (f *fakeSource) FetchPercentile(ctx context.Context, pct int, tr report.TimeRange, link string, dir report.Direction) (float64, error) {
	if v, ok := f.percentiles[key(link, dir)]; ok {
		return v, nil
	}
	return 0, fetcher.ErrNoData
}

var day = report.Date{Year: 2024, Month: time.March, Day: 4}

func series(bps ...float64) []report.Sample {
	start := day.At(8, time.UTC)
	out := make([]report.Sample, len(bps))
	for i, v := range bps {
		out[i] = report.Sample{Time: start.Add(time.Duration(i) * 5 * time.Minute), Value: v / report.BitsPerByte}
	}
	return out
}

func link(name string) report.LinkConfig {
	return report.LinkConfig{Name: name, CapacityBPS: 1e9, MaxTrafficFraction: 0.9, HysteresisFraction: 0.1}
}

func newSource() *fakeSource {
	return &fakeSource{
		traffic: map[string][]report.Sample{
			"A/rx": series(950e6, 950e6, 950e6, 950e6, 950e6, 850e6, 700e6),
			"A/tx": series(100e6, 100e6),
			"B/rx": series(950e6, 950e6),
		},
		percentiles: map[string]float64{"A/rx": 940e6, "A/tx": 100e6},
	}
}

func testOptions() Options {
	return Options{WorkHourBegin: 8, WorkHourEnd: 18, Workers: 3, Scan: scanner.Options{}}
}

func TestBuildReport(t *testing.T) {
	src := newSource()
	b := NewBuilder(src, testOptions(), nil, zerolog.Nop())

	r, err := b.Build(context.Background(), day, []report.LinkConfig{link("A"), link("B")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if r.Date != day {
		t.Fatalf("date = %s", r.Date)
	}

	a := r.Links["A"]
	if !a.HasData() {
		t.Fatal("A should have data")
	}
	if a.RX.TotalExceededMinutes != 30 || a.TX.TotalExceededMinutes != 0 {
		t.Fatalf("unexpected totals rx=%d tx=%d", a.RX.TotalExceededMinutes, a.TX.TotalExceededMinutes)
	}
	if !a.RX.Percentile.Valid || a.RX.Percentile.Decimal.IntPart() != 940_000_000 {
		t.Fatalf("rx percentile = %+v", a.RX.Percentile)
	}

	// B has rx samples but no tx samples: the whole link is no_data
	if r.Links["B"].HasData() {
		t.Fatal("B should be no_data")
	}

	for _, tr := range src.ranges {
		if !tr.Begin.Equal(day.At(8, time.UTC)) || !tr.End.Equal(day.At(18, time.UTC)) {
			t.Fatalf("unexpected query range %+v", tr)
		}
	}
}

func TestBuildDuplicateLinkIsFatal(t *testing.T) {
	b := NewBuilder(newSource(), testOptions(), nil, zerolog.Nop())
	_, err := b.Build(context.Background(), day, []report.LinkConfig{link("A"), link("B"), link("A")})
	if !errors.Is(err, ErrDuplicateLink) {
		t.Fatalf("expected ErrDuplicateLink, got %v", err)
	}
	var dup *DuplicateLinkError
	if !errors.As(err, &dup) || dup.Name != "A" {
		t.Fatalf("expected DuplicateLinkError for A, got %v", err)
	}
}

func TestBuildFetchErrorDegradesToNoData(t *testing.T) {
	src := newSource()
	src.failTraffic = map[string]bool{"A/tx": true}
	b := NewBuilder(src, testOptions(), nil, zerolog.Nop())

	r, err := b.Build(context.Background(), day, []report.LinkConfig{link("A")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if r.Links["A"].HasData() {
		t.Fatal("a failed query should leave the link without data")
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	links := []report.LinkConfig{link("A"), link("B"), link("C")}
	first, err := NewBuilder(newSource(), testOptions(), nil, zerolog.Nop()).Build(context.Background(), day, links)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewBuilder(newSource(), testOptions(), nil, zerolog.Nop()).Build(context.Background(), day, links)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("reports differ:\n%s\n%s", a, b)
	}
}

func TestBuildSkipsIgnoredLinks(t *testing.T) {
	opts := testOptions()
	opts.Ignore = []string{"B"}
	r, err := NewBuilder(newSource(), opts, nil, zerolog.Nop()).Build(context.Background(), day, []report.LinkConfig{link("A"), link("B")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Links["B"]; ok {
		t.Fatal("ignored link should not be in the report")
	}
}

type countingObserver struct {
	mu       sync.Mutex
	scanned  int
	noData   int
	rejected int
}

func (c *countingObserver) DirectionScanned(_ string, _ report.Direction, res scanner.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanned++
	c.rejected += len(res.Rejected)
}

func (c *countingObserver) LinkWithoutData(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noData++
}

func TestBuildNotifiesObserver(t *testing.T) {
	obs := &countingObserver{}
	_, err := NewBuilder(newSource(), testOptions(), obs, zerolog.Nop()).Build(context.Background(), day, []report.LinkConfig{link("A"), link("B")})
	if err != nil {
		t.Fatal(err)
	}
	// A: rx+tx scanned; B: rx scanned then tx empty
	if obs.scanned != 3 || obs.noData != 1 {
		t.Fatalf("scanned=%d noData=%d", obs.scanned, obs.noData)
	}
}
