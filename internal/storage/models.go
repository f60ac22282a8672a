package storage

import (
	"context"
	"errors"

	"link-watcher/internal/report"
)

// ErrReportNotFound is returned by Get when no report exists for the date.
var ErrReportNotFound = errors.New("storage: report not found")

// ReportStore persists daily reports keyed by date.
type ReportStore interface {
	Put(ctx context.Context, r report.DailyReport) error
	Get(ctx context.Context, date report.Date) (report.DailyReport, error)
	// List returns the dates in [begin, end] that have a report, ascending.
	List(ctx context.Context, begin, end report.Date) ([]report.Date, error)
}

// Pruner removes reports older than a cutoff date.
type Pruner interface {
	DeleteReportsBefore(ctx context.Context, before report.Date) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
