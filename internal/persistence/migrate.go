package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockID serializes concurrent `migrate up` invocations.
const migrationLockID = 0x6761_6c67

// Migration is one embedded schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
	Checksum    string
}

// MigrationStatus describes one migration against the live database.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   *time.Time
	// Modified is set when the embedded SQL no longer matches the checksum
	// recorded at apply time.
	Modified bool
}

type appliedMigration struct {
	version   int
	checksum  string
	appliedAt time.Time
}

// MigrationManager applies the embedded migrations to Postgres
type MigrationManager struct {
	db  *PostgresDB
	log *zerolog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *PostgresDB, log *zerolog.Logger) *MigrationManager {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &MigrationManager{db: db, log: log}
}

// Migrate applies every pending migration, each in its own transaction.
func (m *MigrationManager) Migrate(ctx context.Context) error {
	available, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	versions := make([]int, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	pending := findPendingMigrations(available, versions)
	if len(pending) == 0 {
		m.log.Info().Int("applied", len(applied)).Msg("Schema is up to date")
		return nil
	}

	for _, mig := range pending {
		start := time.Now()
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %03d %s: %w", mig.Version, mig.Description, err)
		}
		m.log.Info().
			Int("version", mig.Version).
			Str("description", mig.Description).
			Dur("elapsed", time.Since(start)).
			Msg("Applied migration")
	}
	return nil
}

// Status lists every embedded migration with its applied state.
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	available, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(available))
	for _, mig := range available {
		st := MigrationStatus{Version: mig.Version, Description: mig.Description}
		if rec, ok := applied[mig.Version]; ok {
			at := rec.appliedAt
			st.Applied = true
			st.AppliedAt = &at
			st.Modified = rec.checksum != "" && rec.checksum != mig.Checksum
		}
		out = append(out, st)
	}
	return out, nil
}

// Rollback removes the newest migration record. Schema objects are left in
// place and must be reverted by hand.
func (m *MigrationManager) Rollback(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	last := -1
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last < 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	if _, err := m.db.db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last); err != nil {
		return fmt.Errorf("failed to remove migration record %d: %w", last, err)
	}
	m.log.Warn().Int("version", last).Msg("Migration record removed; revert schema changes manually")
	return nil
}

func (m *MigrationManager) applied(ctx context.Context) (map[int]appliedMigration, error) {
	if _, err := m.db.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INT PRIMARY KEY,
			description TEXT NOT NULL,
			checksum    TEXT NOT NULL DEFAULT '',
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	rows, err := m.db.db.QueryContext(ctx, `SELECT version, checksum, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]appliedMigration)
	for rows.Next() {
		var rec appliedMigration
		if err := rows.Scan(&rec.version, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		out[rec.version] = rec
	}
	return out, rows.Err()
}

func (m *MigrationManager) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	// Another process may have applied it while this one waited.
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, checksum) VALUES ($1, $2, $3)`,
		mig.Version, mig.Description, mig.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads migrations/NNN_description.sql in version order.
func loadMigrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	out := make([]Migration, 0, len(names))
	seen := make(map[int]string)
	for _, name := range names {
		version, desc, err := parseMigrationName(path.Base(name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:     version,
			Description: desc,
			SQL:         string(body),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationName splits "001_initial_schema.sql" into 1 and
// "initial schema".
func parseMigrationName(name string) (int, string, error) {
	stem := strings.TrimSuffix(name, ".sql")
	prefix, rest, ok := strings.Cut(stem, "_")
	if !ok || rest == "" {
		return 0, "", fmt.Errorf("migration file %s has no version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("migration file %s has an invalid version: %w", name, err)
	}
	return version, strings.ReplaceAll(rest, "_", " "), nil
}

// findPendingMigrations keeps the migrations whose version is not applied.
func findPendingMigrations(available []Migration, applied []int) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []Migration
	for _, mig := range available {
		if _, ok := done[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending
}
