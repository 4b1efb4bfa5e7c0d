// Package storage is the durable per-tenant store: the append-only raw
// buffer, the canonical snapshot, the KPI history ledger, and schedules.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mutsynchub/poslens/internal/canonical"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with per-tenant buffer, snapshot, ledger and
// schedule operations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "poslens.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// WAL keeps concurrent ingest appends from starving pipeline reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Raw buffer ---

// AppendRaw appends one raw record. Each append is a single statement and
// therefore atomic with respect to concurrent pipeline reads.
func (s *Store) AppendRaw(row RawRow) error {
	_, err := s.db.Exec(`
		INSERT INTO raw_records (id, tenant_id, ingested_at, payload)
		VALUES (?, ?, ?, ?)`,
		row.ID, row.TenantID, row.IngestedAt.UTC().Format(time.RFC3339Nano), row.Payload,
	)
	return err
}

// AppendRawBatch appends a batch of raw records in one transaction, so a
// stream flush lands all-or-nothing.
func (s *Store) AppendRawBatch(rows []RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch append: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.Exec(`
			INSERT INTO raw_records (id, tenant_id, ingested_at, payload)
			VALUES (?, ?, ?, ?)`,
			row.ID, row.TenantID, row.IngestedAt.UTC().Format(time.RFC3339Nano), row.Payload,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("appending raw record %s: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

// ListRaw returns the entire current buffer for a tenant in ingestion order.
// The canonicalization pass always scans this full buffer, not a bounded
// time window.
func (s *Store) ListRaw(tenantID string) ([]RawRow, error) {
	rows, err := s.db.Query(`
		SELECT id, tenant_id, ingested_at, payload
		FROM raw_records WHERE tenant_id = ?
		ORDER BY ingested_at ASC, id ASC`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var r RawRow
		var ingestedAt string
		if err := rows.Scan(&r.ID, &r.TenantID, &ingestedAt, &r.Payload); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ingestedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing ingested_at: %w", err)
		}
		r.IngestedAt = t
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeRawBefore deletes a tenant's raw records older than the cutoff and
// returns how many went. This is the retention window's delete-by-age.
func (s *Store) PurgeRawBefore(tenantID string, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM raw_records WHERE tenant_id = ? AND ingested_at < ?`,
		tenantID, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Canonical snapshot ---

// ReplaceCanonical wholesale-replaces the tenant's canonical snapshot. The
// snapshot is a materialized view: it is never patched incrementally.
func (s *Store) ReplaceCanonical(tenantID string, recs []canonical.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot replace: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM canonical_records WHERE tenant_id = ?`, tenantID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	for _, r := range recs {
		if _, err := tx.Exec(`
			INSERT INTO canonical_records
				(tenant_id, ts, product_id, qty, total, store_id, category, promo_flag, expiry_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tenantID, nullableTime(r.Timestamp), r.ProductID, r.Qty, r.Total,
			r.StoreID, r.Category, boolToInt(r.PromoFlag), nullableTime(r.ExpiryDate),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting canonical row: %w", err)
		}
	}
	return tx.Commit()
}

// ListCanonical returns the tenant's current canonical snapshot.
func (s *Store) ListCanonical(tenantID string) ([]canonical.Record, error) {
	rows, err := s.db.Query(`
		SELECT ts, product_id, qty, total, store_id, category, promo_flag, expiry_date
		FROM canonical_records WHERE tenant_id = ? ORDER BY rowid`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canonical.Record
	for rows.Next() {
		var r canonical.Record
		var ts, expiry sql.NullString
		var promo int
		if err := rows.Scan(&ts, &r.ProductID, &r.Qty, &r.Total, &r.StoreID, &r.Category, &promo, &expiry); err != nil {
			return nil, err
		}
		r.PromoFlag = promo != 0
		if ts.Valid {
			if t, err := time.Parse(time.RFC3339Nano, ts.String); err == nil {
				r.Timestamp = t
			}
		}
		if expiry.Valid {
			if t, err := time.Parse(time.RFC3339Nano, expiry.String); err == nil {
				r.ExpiryDate = t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- KPI ledger ---

// AppendReport appends one entry to the tenant's KPI history ledger.
func (s *Store) AppendReport(e ReportEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO kpi_reports (id, tenant_id, analytic, industry, confidence, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.Analytic, e.Industry, e.Confidence, e.ReportJSON,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LatestReport returns the most recent ledger entry for a tenant, or
// ErrNotFound when the ledger is empty.
func (s *Store) LatestReport(tenantID string) (ReportEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, tenant_id, analytic, industry, confidence, report_json, created_at
		FROM kpi_reports WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, tenantID,
	)
	return scanReport(row)
}

// ListReports returns up to limit most recent ledger entries for a tenant.
func (s *Store) ListReports(tenantID string, limit int) ([]ReportEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, tenant_id, analytic, industry, confidence, report_json, created_at
		FROM kpi_reports WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportEntry
	for rows.Next() {
		e, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (ReportEntry, error) {
	var e ReportEntry
	var createdAt string
	err := row.Scan(&e.ID, &e.TenantID, &e.Analytic, &e.Industry, &e.Confidence, &e.ReportJSON, &createdAt)
	if err == sql.ErrNoRows {
		return ReportEntry{}, ErrNotFound
	}
	if err != nil {
		return ReportEntry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ReportEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

// --- Schedules ---

// CreateSchedule inserts a new schedule.
func (s *Store) CreateSchedule(sch Schedule) error {
	_, err := s.db.Exec(`
		INSERT INTO schedules (id, tenant_id, analytic, frequency, next_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sch.ID, sch.TenantID, sch.Analytic, sch.Frequency,
		sch.NextRun.UTC().Format(time.RFC3339Nano),
		sch.CreatedAt.UTC().Format(time.RFC3339Nano),
		sch.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListSchedules returns all schedules for a tenant.
func (s *Store) ListSchedules(tenantID string) ([]Schedule, error) {
	return s.querySchedules(`
		SELECT id, tenant_id, analytic, frequency, next_run, created_at, updated_at
		FROM schedules WHERE tenant_id = ? ORDER BY created_at ASC`, tenantID)
}

// DueSchedules returns every schedule whose next_run is at or before now.
func (s *Store) DueSchedules(now time.Time) ([]Schedule, error) {
	return s.querySchedules(`
		SELECT id, tenant_id, analytic, frequency, next_run, created_at, updated_at
		FROM schedules WHERE next_run <= ? ORDER BY next_run ASC`,
		now.UTC().Format(time.RFC3339Nano))
}

// DeleteSchedule removes a schedule by ID.
func (s *Store) DeleteSchedule(id string) error {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceSchedule bumps a schedule's next_run after a completed (or
// skipped) cycle.
func (s *Store) AdvanceSchedule(id string, nextRun time.Time) error {
	res, err := s.db.Exec(`
		UPDATE schedules SET next_run = ?, updated_at = ? WHERE id = ?`,
		nextRun.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) querySchedules(query string, args ...any) ([]Schedule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sch Schedule
		var nextRun, createdAt, updatedAt string
		if err := rows.Scan(&sch.ID, &sch.TenantID, &sch.Analytic, &sch.Frequency, &nextRun, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if sch.NextRun, err = time.Parse(time.RFC3339Nano, nextRun); err != nil {
			return nil, fmt.Errorf("parsing next_run for schedule %s: %w", sch.ID, err)
		}
		if sch.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for schedule %s: %w", sch.ID, err)
		}
		if sch.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for schedule %s: %w", sch.ID, err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
