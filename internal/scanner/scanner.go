// Package scanner turns one direction's traffic samples into exceedance intervals.
package scanner

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"link-watcher/internal/report"
)

const (
	// DefaultCadence is the TSDB sampling resolution.
	DefaultCadence = 5 * time.Minute
	// DefaultSpikeFactor discards intervals whose mean reaches this multiple of the limit.
	DefaultSpikeFactor = 6.0

	valuePlaces = 1
)

// Options tune a scan.
type Options struct {
	Cadence     time.Duration
	SpikeFactor float64
	// Location is applied to interval timestamps. Defaults to UTC.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Cadence <= 0 {
		o.Cadence = DefaultCadence
	}
	if o.SpikeFactor <= 0 {
		o.SpikeFactor = DefaultSpikeFactor
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Rejection describes an interval dropped by spike rejection.
type Rejection struct {
	Begin time.Time
	End   time.Time
	Mean  float64
}

// Result is the outcome of scanning one direction.
type Result struct {
	Intervals            []report.Interval
	TotalExceededMinutes int
	Rejected             []Rejection
}

// DirectionReport converts the result into its persisted form.
func (r Result) DirectionReport() report.DirectionReport {
	return report.DirectionReport{
		TotalExceededMinutes: r.TotalExceededMinutes,
		Intervals:            r.Intervals,
	}
}

// Scan walks samples once. An interval opens on a sample at or above the link limit and
// stays open while samples remain at or above the re-arm limit.
func Scan(samples []report.Sample, link report.LinkConfig, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{Intervals: make([]report.Interval, 0)}

	limit := link.Limit()
	rearm := link.RearmLimit()
	cadenceMinutes := int(opts.Cadence / time.Minute)

	i := 0
	for i < len(samples) {
		// written as a negation so NaN points never open an interval
		if !(bits(samples[i]) >= limit) {
			i++
			continue
		}

		begin := samples[i].Time
		if i > 0 {
			begin = samples[i-1].Time
		}

		maxV := bits(samples[i])
		minV := maxV
		count := 0
		last := i
		for i < len(samples) && bits(samples[i]) >= rearm {
			v := bits(samples[i])
			maxV = math.Max(maxV, v)
			minV = math.Min(minV, v)
			count++
			last = i
			i++
		}

		mean := (maxV + minV) / 2
		end := samples[last].Time
		if isSpike(mean, limit, opts.SpikeFactor) {
			res.Rejected = append(res.Rejected, Rejection{
				Begin: begin.In(opts.Location),
				End:   end.In(opts.Location),
				Mean:  mean,
			})
			continue
		}

		interval := report.Interval{
			Begin:           begin.In(opts.Location),
			End:             end.In(opts.Location),
			ExceededMinutes: count * cadenceMinutes,
			Mean:            round(mean),
			Max:             round(maxV),
			Min:             round(minV),
		}
		res.Intervals = append(res.Intervals, interval)
		res.TotalExceededMinutes += interval.ExceededMinutes
	}

	return res
}

func bits(s report.Sample) float64 {
	return s.Value * report.BitsPerByte
}

// isSpike flags a link that went down and came back up: a single extreme point drags
// the midpoint far above anything the link can carry.
func isSpike(mean, limit, factor float64) bool {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return true
	}
	return mean >= factor*limit
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(valuePlaces)
}
