package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BitsPerByte converts the raw TSDB byte rate into bits per second.
const BitsPerByte = 8

// NoDataToken is the JSON form of a link without samples for the day.
const NoDataToken = "no_data"

// Direction identifies the traffic direction of an interface.
type Direction string

const (
	RX Direction = "rx"
	TX Direction = "tx"
)

// Directions lists both traffic directions in report order.
var Directions = []Direction{RX, TX}

// LinkConfig describes a monitored link and its thresholds.
type LinkConfig struct {
	Name               string  `json:"name" mapstructure:"name"`
	CapacityBPS        float64 `json:"capacity_bps" mapstructure:"capacity_bps"`
	MaxTrafficFraction float64 `json:"max_traffic_fraction" mapstructure:"max_traffic_fraction"`
	HysteresisFraction float64 `json:"hysteresis_fraction" mapstructure:"hysteresis_fraction"`
}

// Limit is the traffic rate, in bits per second, that opens an exceedance.
func (l LinkConfig) Limit() float64 {
	return l.CapacityBPS * l.MaxTrafficFraction
}

// RearmLimit is the rate below which an open exceedance closes.
func (l LinkConfig) RearmLimit() float64 {
	limit := l.Limit()
	return limit - limit*l.HysteresisFraction
}

// Validate checks the link thresholds.
func (l LinkConfig) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("link name is required")
	}
	if l.CapacityBPS <= 0 {
		return fmt.Errorf("link %s: capacity must be greater than zero", l.Name)
	}
	if l.MaxTrafficFraction < 0 || l.MaxTrafficFraction > 1 {
		return fmt.Errorf("link %s: max traffic fraction must be within [0,1]", l.Name)
	}
	if l.HysteresisFraction < 0 || l.HysteresisFraction > 1 {
		return fmt.Errorf("link %s: hysteresis fraction must be within [0,1]", l.Name)
	}
	return nil
}

// Sample is one TSDB point. Value is the raw byte rate.
type Sample struct {
	Time  time.Time
	Value float64
}

// Interval is a contiguous exceedance on one direction of a link.
type Interval struct {
	Begin           time.Time       `json:"begin"`
	End             time.Time       `json:"end"`
	ExceededMinutes int             `json:"exceeded_minutes"`
	Mean            decimal.Decimal `json:"mean_bps"`
	Max             decimal.Decimal `json:"max_bps"`
	Min             decimal.Decimal `json:"min_bps"`
}

// DirectionReport holds the scan result of one direction of a link.
type DirectionReport struct {
	TotalExceededMinutes int                 `json:"total_exceeded_minutes"`
	Intervals            []Interval          `json:"intervals"`
	Percentile           decimal.NullDecimal `json:"percentile_bps"`
}

// EntryKind tags the variant held by a LinkEntry.
type EntryKind int

const (
	EntryHasData EntryKind = iota
	EntryNoData
)

// LinkEntry is a link's slot in a DailyReport: either both directions or no data.
type LinkEntry struct {
	Kind EntryKind
	RX   DirectionReport
	TX   DirectionReport
}

// DataEntry builds an entry carrying both direction reports.
func DataEntry(rx, tx DirectionReport) LinkEntry {
	return LinkEntry{Kind: EntryHasData, RX: rx, TX: tx}
}

// NoDataEntry builds the entry for a link without samples.
func NoDataEntry() LinkEntry {
	return LinkEntry{Kind: EntryNoData}
}

// HasData reports whether the entry carries direction reports.
func (e LinkEntry) HasData() bool {
	return e.Kind == EntryHasData
}

// Direction returns the report for dir.
func (e LinkEntry) Direction(dir Direction) DirectionReport {
	if dir == TX {
		return e.TX
	}
	return e.RX
}

// TotalExceededMinutes sums both directions; zero for no-data entries.
func (e LinkEntry) TotalExceededMinutes() int {
	if !e.HasData() {
		return 0
	}
	return e.RX.TotalExceededMinutes + e.TX.TotalExceededMinutes
}

type linkEntryJSON struct {
	RX *DirectionReport `json:"rx"`
	TX *DirectionReport `json:"tx"`
}

// MarshalJSON encodes no-data entries as the "no_data" string.
func (e LinkEntry) MarshalJSON() ([]byte, error) {
	if !e.HasData() {
		return json.Marshal(NoDataToken)
	}
	return json.Marshal(linkEntryJSON{RX: &e.RX, TX: &e.TX})
}

// UnmarshalJSON accepts either the no-data string or an rx/tx object.
func (e *LinkEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var token string
		if err := json.Unmarshal(trimmed, &token); err != nil {
			return err
		}
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(token)), " ", "_")
		if normalized != NoDataToken {
			return fmt.Errorf("unknown link entry %q", token)
		}
		*e = NoDataEntry()
		return nil
	}

	var raw linkEntryJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	if raw.RX == nil || raw.TX == nil {
		return errors.New("link entry requires both rx and tx")
	}
	*e = DataEntry(*raw.RX, *raw.TX)
	return nil
}

// DailyReport is the persisted scan result of one day.
type DailyReport struct {
	Date  Date                 `json:"date"`
	Links map[string]LinkEntry `json:"links"`
}

// NewDailyReport returns an empty report for date.
func NewDailyReport(date Date) DailyReport {
	return DailyReport{Date: date, Links: make(map[string]LinkEntry)}
}

// LinkNames returns the report's link names in ascending order.
func (r DailyReport) LinkNames() []string {
	names := make([]string, 0, len(r.Links))
	for name := range r.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
