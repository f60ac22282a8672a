package report

import (
	"fmt"
	"time"
)

// DateLayout is the text form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day t falls on in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// At returns the instant at the given hour of the day in loc.
func (d Date) At(hour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, loc)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.At(0, time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or 1 when d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.At(0, time.UTC).Compare(o.At(0, time.UTC))
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return d.At(0, time.UTC).Format(DateLayout)
}

// Short renders the date as DD/MM/YY.
func (d Date) Short() string {
	return d.At(0, time.UTC).Format("02/01/06")
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange lists every date from begin to end inclusive. It returns nil when end is
// before begin.
func DateRange(begin, end Date) []Date {
	if end.Before(begin) {
		return nil
	}
	var dates []Date
	for d := begin; !end.Before(d); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// TimeRange is a half-open query window [Begin, End).
type TimeRange struct {
	Begin time.Time
	End   time.Time
}

// Window is the aggregation scope of one alert run.
type Window struct {
	Begin                Date
	End                  Date
	TimeThresholdMinutes int
}

// Days returns every date covered by the window.
func (w Window) Days() []Date {
	return DateRange(w.Begin, w.End)
}

// Validate rejects windows whose begin is after their end.
func (w Window) Validate() error {
	if w.Begin.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window dates must be set")
	}
	if w.End.Before(w.Begin) {
		return fmt.Errorf("window begin %s is after end %s", w.Begin, w.End)
	}
	if w.TimeThresholdMinutes < 0 {
		return fmt.Errorf("time threshold cannot be negative")
	}
	return nil
}
