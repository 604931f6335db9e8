// Package store keeps a local SQLite ledger of pipeline runs and their
// generation attempts.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store represents the SQLite run ledger
type Store struct {
	db   *sql.DB
	path string
}

// Run is one pipeline execution.
type Run struct {
	ID         string
	MatchID    string
	Status     string
	Source     string
	Provider   string
	Attempts   int
	UsedMock   bool
	Slug       string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Attempt is one generation attempt within a run.
type Attempt struct {
	Number     int
	Provider   string
	Source     string
	Rule       string
	Error      string
	DurationMs int64
}

// Outcome is what FinishRun records.
type Outcome struct {
	Status   string
	Source   string
	Provider string
	Slug     string
	Error    string
	Attempts []Attempt
}

// Stats summarizes the ledger.
type Stats struct {
	Runs        int
	Succeeded   int
	Failed      int
	Fallbacks   int
	AvgAttempts float64
}

// NewStore opens or creates the ledger database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL,
		status TEXT NOT NULL,
		source TEXT,
		provider TEXT,
		attempts INTEGER DEFAULT 0,
		used_mock INTEGER DEFAULT 0,
		slug TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);`

	attemptsTable := `
	CREATE TABLE IF NOT EXISTS attempts (
		run_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		provider TEXT,
		source TEXT,
		rule TEXT,
		error TEXT,
		duration_ms INTEGER,
		PRIMARY KEY (run_id, number),
		FOREIGN KEY (run_id) REFERENCES runs (id)
	);`

	indexes := `CREATE INDEX IF NOT EXISTS idx_runs_match ON runs (match_id, started_at);`

	for _, stmt := range []string{runsTable, attemptsTable, indexes} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new running entry and returns its id.
func (s *Store) StartRun(matchID string, usedMock bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
	INSERT INTO runs (id, match_id, status, used_mock, started_at)
	VALUES (?, ?, ?, ?, ?)`, id, matchID, StatusRunning, usedMock, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome and its attempts.
func (s *Store) FinishRun(runID string, out Outcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
	UPDATE runs SET status = ?, source = ?, provider = ?, attempts = ?, slug = ?, error = ?, finished_at = ?
	WHERE id = ?`, out.Status, out.Source, out.Provider, len(out.Attempts), out.Slug, out.Error, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}

	for _, a := range out.Attempts {
		_, err := tx.Exec(`
		INSERT OR REPLACE INTO attempts (run_id, number, provider, source, rule, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, runID, a.Number, a.Provider, a.Source, a.Rule, a.Error, a.DurationMs)
		if err != nil {
			return fmt.Errorf("failed to record attempt %d: %w", a.Number, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first. An empty matchID
// returns runs for every match.
func (s *Store) RecentRuns(matchID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, match_id, status, COALESCE(source, ''), COALESCE(provider, ''), attempts, used_mock,
		COALESCE(slug, ''), COALESCE(error, ''), started_at, finished_at
	FROM runs`
	args := []any{}
	if matchID != "" {
		query += ` WHERE match_id = ?`
		args = append(args, matchID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.MatchID, &r.Status, &r.Source, &r.Provider, &r.Attempts, &r.UsedMock,
			&r.Slug, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Attempts returns a run's attempts in order.
func (s *Store) Attempts(runID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
	SELECT number, COALESCE(provider, ''), COALESCE(source, ''), COALESCE(rule, ''), COALESCE(error, ''), duration_ms
	FROM attempts WHERE run_id = ? ORDER BY number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.Number, &a.Provider, &a.Source, &a.Rule, &a.Error, &a.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetStats summarizes finished runs.
func (s *Store) GetStats() (*Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRow(`
	SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN source = 'fallback' THEN 1 ELSE 0 END), 0),
		AVG(CASE WHEN status != ? THEN attempts END)
	FROM runs`, StatusSucceeded, StatusFailed, StatusRunning).Scan(&st.Runs, &st.Succeeded, &st.Failed, &st.Fallbacks, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	st.AvgAttempts = avg.Float64
	return &st, nil
}

// CleanupOldRuns removes runs started before maxAge ago.
func (s *Store) CleanupOldRuns(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	if _, err := s.db.Exec(`DELETE FROM attempts WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to clean attempts: %w", err)
	}
	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean runs: %w", err)
	}
	return res.RowsAffected()
}
