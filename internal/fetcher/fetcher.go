package fetcher

import (
	"context"
	"errors"

	"link-watcher/internal/report"
)

// ErrNoData is returned when the TSDB has no points for the requested series.
var ErrNoData = errors.New("fetcher: no data")

// SampleSource retrieves interface traffic from the time-series store.
type SampleSource interface {
	// FetchTraffic returns samples ordered by time. It returns an empty slice, never nil,
	// when the range holds no points.
	FetchTraffic(ctx context.Context, link string, dir report.Direction, tr report.TimeRange) ([]report.Sample, error)
	// FetchPercentile returns the pct-th percentile of the series in bits per second.
	FetchPercentile(ctx context.Context, pct int, tr report.TimeRange, link string, dir report.Direction) (float64, error)
}
