// Package storage persists export events, the error log, and the async
// job queue in a single SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite database behind typed accessors.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and applies pending
// migrations. Pass ":memory:" as dataDir for an in-memory database.
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "sprintdeck.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
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

// migrate applies embedded SQL files that have not been run yet,
// tracked by version number in schema_version.
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

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
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

// AppliedMigrations returns the applied versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Export events ---

func (s *Store) SaveExportEvent(e ExportEvent) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO export_events (id, created_at, presentation_id, format, event, byte_size, duration_ms, cache_hit, error_code, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, createdAt.UTC().Format(time.RFC3339), e.PresentationID, e.Format, e.Event,
		e.ByteSize, e.DurationMS, boolToInt(e.CacheHit), e.ErrorCode, e.Message,
	)
	return err
}

func (s *Store) RecentExportEvents(limit int) ([]ExportEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, presentation_id, format, event, byte_size, duration_ms, cache_hit, error_code, message
		FROM export_events ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExportEvent
	for rows.Next() {
		var e ExportEvent
		var createdAt string
		var cacheHit int
		if err := rows.Scan(&e.ID, &createdAt, &e.PresentationID, &e.Format, &e.Event,
			&e.ByteSize, &e.DurationMS, &cacheHit, &e.ErrorCode, &e.Message); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		e.CacheHit = cacheHit != 0
		results = append(results, e)
	}
	return results, rows.Err()
}

// Aggregates summarizes export activity across the whole event log.
func (s *Store) Aggregates() (ExportAggregates, error) {
	agg := ExportAggregates{ByFormat: make(map[string]int)}

	err := s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN event = 'started' THEN 1 END),
			COUNT(CASE WHEN event = 'completed' THEN 1 END),
			COUNT(CASE WHEN event = 'failed' THEN 1 END),
			COUNT(CASE WHEN event = 'completed' AND cache_hit = 1 THEN 1 END),
			COALESCE(AVG(CASE WHEN event = 'completed' THEN duration_ms END), 0)
		FROM export_events`,
	).Scan(&agg.TotalStarted, &agg.TotalCompleted, &agg.TotalFailed, &agg.CacheHits, &agg.AvgDurationMS)
	if err != nil {
		return agg, fmt.Errorf("aggregating export events: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT format, COUNT(*) FROM export_events WHERE event = 'completed' GROUP BY format`)
	if err != nil {
		return agg, err
	}
	defer rows.Close()
	for rows.Next() {
		var format string
		var n int
		if err := rows.Scan(&format, &n); err != nil {
			return agg, err
		}
		agg.ByFormat[format] = n
	}
	return agg, rows.Err()
}

// --- Error log ---

func (s *Store) SaveErrorEntry(e ErrorEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO error_log (id, created_at, code, message, recoverable, attempt, format, quality, slide_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, createdAt.UTC().Format(time.RFC3339), e.Code, e.Message,
		boolToInt(e.Recoverable), e.Attempt, e.Format, e.Quality, e.SlideCount,
	)
	return err
}

func (s *Store) RecentErrors(limit int) ([]ErrorEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, code, message, recoverable, attempt, format, quality, slide_count
		FROM error_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ErrorEntry
	for rows.Next() {
		var e ErrorEntry
		var createdAt string
		var recoverable int
		if err := rows.Scan(&e.ID, &createdAt, &e.Code, &e.Message, &recoverable,
			&e.Attempt, &e.Format, &e.Quality, &e.SlideCount); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		e.Recoverable = recoverable != 0
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) ErrorCountsByCode() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT code, COUNT(*) FROM error_log GROUP BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *Store) GetJob(id string) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err := s.db.QueryRow(`
		SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error, result_path
		FROM jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError, &j.ResultPath)
	if err == sql.ErrNoRows {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return Job{}, fmt.Errorf("parsing run_after: %w", err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return j, nil
}

// ClaimNextJob atomically marks the oldest runnable job of the given
// types as running and returns it. Returns (nil, nil) when nothing is
// runnable.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error, result_path
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError, &j.ResultPath,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

// CompleteJob marks a job done and records where its artifact landed.
func (s *Store) CompleteJob(id, resultPath string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', result_path = ?, updated_at = ? WHERE id = ?`,
		resultPath, now, id)
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

// FailJob records a failed attempt. Jobs with attempts left go back to
// pending with exponential backoff; exhausted jobs become failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
