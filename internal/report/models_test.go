package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	if err != nil {
		t.Fatal(err)
	}
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Fatalf("leap day = %s", got)
	}
	if got := d.AddDays(2).Short(); got != "01/03/24" {
		t.Fatalf("short = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.Compare(d) != 0 {
		t.Fatal("unexpected ordering")
	}
	if _, err := ParseDate("28/02/2024"); err == nil {
		t.Fatal("expected parse error")
	}

	if got := len(DateRange(d, d.AddDays(6))); got != 7 {
		t.Fatalf("range length = %d", got)
	}
	if DateRange(d.AddDays(1), d) != nil {
		t.Fatal("reversed range should be empty")
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	instant := time.Date(2024, time.March, 4, 22, 30, 0, 0, time.UTC)
	if got := DateOf(instant.In(loc)).String(); got != "2024-03-05" {
		t.Fatalf("local date = %s", got)
	}
}

func TestWindowValidate(t *testing.T) {
	begin := Date{Year: 2024, Month: time.March, Day: 4}
	cases := []struct {
		name    string
		window  Window
		wantErr bool
	}{
		{"single day", Window{Begin: begin, End: begin, TimeThresholdMinutes: 60}, false},
		{"week", Window{Begin: begin, End: begin.AddDays(6)}, false},
		{"reversed", Window{Begin: begin.AddDays(1), End: begin}, true},
		{"zero", Window{}, true},
		{"negative threshold", Window{Begin: begin, End: begin, TimeThresholdMinutes: -1}, true},
	}
	for _, tc := range cases {
		err := tc.window.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v", tc.name, err)
		}
	}
}

func TestLinkLimits(t *testing.T) {
	link := LinkConfig{Name: "site-a", CapacityBPS: 1e9, MaxTrafficFraction: 0.9, HysteresisFraction: 0.1}
	if link.Limit() != 9e8 {
		t.Fatalf("limit = %v", link.Limit())
	}
	if link.RearmLimit() != 8.1e8 {
		t.Fatalf("rearm = %v", link.RearmLimit())
	}
	if err := link.Validate(); err != nil {
		t.Fatal(err)
	}

	bad := []LinkConfig{
		{CapacityBPS: 1e9},
		{Name: "x"},
		{Name: "x", CapacityBPS: 1e9, MaxTrafficFraction: 1.5},
		{Name: "x", CapacityBPS: 1e9, HysteresisFraction: -0.1},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Errorf("expected error for %+v", l)
		}
	}
}

func TestLinkEntryJSON(t *testing.T) {
	begin := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	r := NewDailyReport(Date{Year: 2024, Month: time.March, Day: 4})
	r.Links["site-a"] = DataEntry(
		DirectionReport{
			TotalExceededMinutes: 10,
			Intervals: []Interval{{
				Begin:           begin,
				End:             begin.Add(10 * time.Minute),
				ExceededMinutes: 10,
				Mean:            decimal.NewFromInt(950),
				Max:             decimal.NewFromInt(990),
				Min:             decimal.NewFromInt(910),
			}},
			Percentile: decimal.NewNullDecimal(decimal.NewFromInt(900)),
		},
		DirectionReport{Intervals: []Interval{}},
	)
	r.Links["site-b"] = NoDataEntry()

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"site-b":"no_data"`) {
		t.Fatalf("no-data entry not encoded as token: %s", raw)
	}
	if !strings.Contains(string(raw), `"date":"2024-03-04"`) {
		t.Fatalf("date not encoded as text: %s", raw)
	}

	var decoded DailyReport
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Links["site-b"].HasData() {
		t.Fatal("site-b should have no data")
	}
	a := decoded.Links["site-a"]
	if a.TotalExceededMinutes() != 10 || !a.RX.Intervals[0].Max.Equal(decimal.NewFromInt(990)) {
		t.Fatalf("unexpected site-a entry %+v", a)
	}
	if a.TX.Percentile.Valid {
		t.Fatal("tx percentile should be null")
	}
}

func TestLinkEntryAcceptsLegacyToken(t *testing.T) {
	var e LinkEntry
	if err := json.Unmarshal([]byte(`"No data"`), &e); err != nil {
		t.Fatal(err)
	}
	if e.HasData() {
		t.Fatal("expected no-data entry")
	}
	if err := json.Unmarshal([]byte(`"broken"`), &e); err == nil {
		t.Fatal("expected error for unknown token")
	}
	if err := json.Unmarshal([]byte(`{"rx":{"total_exceeded_minutes":1}}`), &e); err == nil {
		t.Fatal("expected error when tx is missing")
	}
}

func TestLinkNamesSorted(t *testing.T) {
	r := NewDailyReport(Date{Year: 2024, Month: time.March, Day: 4})
	r.Links["b"] = NoDataEntry()
	r.Links["a"] = NoDataEntry()
	names := r.LinkNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v", names)
	}
}
