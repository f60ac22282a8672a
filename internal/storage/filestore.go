package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"link-watcher/internal/report"
)

const (
	reportFilePrefix = "reports_"
	reportFileSuffix = ".json"
)

// FileStore keeps one JSON file per day in a directory.
type FileStore struct {
	dir    string
	indent int
}

// NewFileStore returns a store rooted at dir. indent is the JSON indent width; zero
// writes compact files.
func NewFileStore(dir string, indent int) *FileStore {
	return &FileStore{dir: dir, indent: indent}
}

// Path returns the file a report for date is written to.
func (s *FileStore) Path(date report.Date) string {
	return filepath.Join(s.dir, reportFilePrefix+date.String()+reportFileSuffix)
}

// Put writes the report through a temporary file so readers never see partial files.
func (s *FileStore) Put(ctx context.Context, r report.DailyReport) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	var (
		payload []byte
		err     error
	)
	if s.indent > 0 {
		payload, err = json.MarshalIndent(r, "", strings.Repeat(" ", s.indent))
	} else {
		payload, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(r.Date)); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// Get reads the report of date.
func (s *FileStore) Get(ctx context.Context, date report.Date) (report.DailyReport, error) {
	payload, err := os.ReadFile(s.Path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report.DailyReport{}, ErrReportNotFound
		}
		return report.DailyReport{}, fmt.Errorf("read report: %w", err)
	}
	return decodeReport(payload, date)
}

// List scans the directory for report files within [begin, end].
func (s *FileStore) List(ctx context.Context, begin, end report.Date) ([]report.Date, error) {
	dates, err := s.dates()
	if err != nil {
		return nil, err
	}
	out := make([]report.Date, 0, len(dates))
	for _, d := range dates {
		if d.Before(begin) || end.Before(d) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// DeleteReportsBefore removes report files older than before.
func (s *FileStore) DeleteReportsBefore(ctx context.Context, before report.Date) (int64, error) {
	dates, err := s.dates()
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, d := range dates {
		if !d.Before(before) {
			continue
		}
		if err := os.Remove(s.Path(d)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove report %s: %w", d, err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) dates() ([]report.Date, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report dir: %w", err)
	}

	var dates []report.Date
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, reportFilePrefix) || !strings.HasSuffix(name, reportFileSuffix) {
			continue
		}
		d, err := report.ParseDate(strings.TrimSuffix(strings.TrimPrefix(name, reportFilePrefix), reportFileSuffix))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

var (
	_ ReportStore = (*FileStore)(nil)
	_ Pruner      = (*FileStore)(nil)
)
