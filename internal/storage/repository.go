package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"link-watcher/internal/report"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS daily_reports (
        report_date DATE PRIMARY KEY,
        payload     JSONB NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertReportSQL = `INSERT INTO daily_reports (
        report_date,
        payload
    ) VALUES (
        $1,$2
    )
    ON CONFLICT (report_date) DO UPDATE
    SET
        payload    = EXCLUDED.payload,
        updated_at = now();`

	getReportSQL = `SELECT payload
    FROM daily_reports
    WHERE report_date = $1;`

	listReportDatesSQL = `SELECT report_date
    FROM daily_reports
    WHERE report_date >= $1
      AND report_date <= $2
    ORDER BY report_date;`

	deleteReportsBeforeSQL = `DELETE FROM daily_reports WHERE report_date < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Store keeps daily reports as JSONB rows in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the reports table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the session lock is also dropped when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Put persists or replaces the report of r.Date.
func (s *Store) Put(ctx context.Context, r report.DailyReport) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if _, execErr := pool.Exec(ctx, upsertReportSQL, dateParam(r.Date), payload); execErr != nil {
		return fmt.Errorf("upsert report: %w", execErr)
	}
	return nil
}

// Get loads the report of date.
func (s *Store) Get(ctx context.Context, date report.Date) (report.DailyReport, error) {
	pool, err := s.getPool()
	if err != nil {
		return report.DailyReport{}, err
	}

	var payload []byte
	if scanErr := pool.QueryRow(ctx, getReportSQL, dateParam(date)).Scan(&payload); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return report.DailyReport{}, ErrReportNotFound
		}
		return report.DailyReport{}, fmt.Errorf("get report: %w", scanErr)
	}

	return decodeReport(payload, date)
}

// List returns the report dates within [begin, end].
func (s *Store) List(ctx context.Context, begin, end report.Date) ([]report.Date, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReportDatesSQL, dateParam(begin), dateParam(end))
	if queryErr != nil {
		return nil, fmt.Errorf("list reports: %w", queryErr)
	}
	defer rows.Close()

	dates := make([]report.Date, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		dates = append(dates, report.DateOf(day.UTC()))
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return dates, nil
}

// DeleteReportsBefore deletes reports older than before.
func (s *Store) DeleteReportsBefore(ctx context.Context, before report.Date) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteReportsBeforeSQL, dateParam(before))
	if execErr != nil {
		return 0, fmt.Errorf("delete reports before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func dateParam(d report.Date) time.Time {
	return d.At(0, time.UTC)
}

// decodeReport parses a stored payload and checks it belongs to date.
func decodeReport(payload []byte, date report.Date) (report.DailyReport, error) {
	var r report.DailyReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return report.DailyReport{}, fmt.Errorf("decode report %s: %w", date, err)
	}
	if r.Date != date {
		return report.DailyReport{}, fmt.Errorf("report stored under %s carries date %s", date, r.Date)
	}
	if r.Links == nil {
		r.Links = make(map[string]report.LinkEntry)
	}
	return r, nil
}

var (
	_ ReportStore    = (*Store)(nil)
	_ Pruner         = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
