package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// ReportStore is the persistent keyed cache of completed analysis reports.
// Put is insert-or-replace; Get returns (nil, nil) for an absent id.
type ReportStore interface {
	Get(ctx context.Context, id string) (*Report, error)
	Put(ctx context.Context, report *Report) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Report, error)
	IDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// SQLiteReportStore implements ReportStore using SQLite/libsql.
type SQLiteReportStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewDefaultReportStore opens the report cache in the default data directory.
func NewDefaultReportStore(pm *PathManager) (ReportStore, error) {
	dbPath, err := pm.HistoryDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get history database path: %w", err)
	}
	return NewReportStore(dbPath)
}

// NewReportStore opens (or creates) a report cache at dbPath.
func NewReportStore(dbPath string) (ReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteReportStore{db: db, now: time.Now}
	if err := execSchema(db, reportSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// purgeExpired drops pending records older than the retention window. Runs
// lazily on read paths, never on a background timer.
func (s *SQLiteReportStore) purgeExpired(ctx context.Context) error {
	cutoff := s.now().Add(-PendingRetention)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE pending_since IS NOT NULL AND pending_since < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge expired reports: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) Get(ctx context.Context, id string) (*Report, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, content, birth_date, birth_time, gender, summary, pending_since
		 FROM reports WHERE id = ?`, id)

	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func (s *SQLiteReportStore) Put(ctx context.Context, report *Report) error {
	var pending any
	if !report.PendingSince.IsZero() {
		pending = report.PendingSince
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, created_at, content, birth_date, birth_time, gender, summary, pending_since)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   created_at = excluded.created_at,
		   content = excluded.content,
		   birth_date = excluded.birth_date,
		   birth_time = excluded.birth_time,
		   gender = excluded.gender,
		   summary = excluded.summary,
		   pending_since = excluded.pending_since`,
		report.ID, report.CreatedAt, report.Content, report.BirthDate,
		nullable(report.BirthTime), nullable(report.Gender), nullable(report.Summary), pending)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) List(ctx context.Context) ([]Report, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, content, birth_date, birth_time, gender, summary, pending_since
		 FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func (s *SQLiteReportStore) IDs(ctx context.Context) ([]string, error) {
	if err := s.purgeExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reports`)
	if err != nil {
		return nil, fmt.Errorf("failed to list report ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan report id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteReportStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports`); err != nil {
		return fmt.Errorf("failed to clear reports: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*Report, error) {
	var report Report
	var birthTime, gender, summary sql.NullString
	var pending sql.NullTime

	err := row.Scan(&report.ID, &report.CreatedAt, &report.Content, &report.BirthDate,
		&birthTime, &gender, &summary, &pending)
	if err != nil {
		return nil, err
	}

	report.BirthTime = birthTime.String
	report.Gender = gender.String
	report.Summary = summary.String
	if pending.Valid {
		report.PendingSince = pending.Time
	}
	return &report, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const reportSchema = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    content TEXT NOT NULL,
    birth_date TEXT NOT NULL,
    birth_time TEXT,
    gender TEXT,
    summary TEXT,
    pending_since TIMESTAMP,
    UNIQUE(id)
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
`
