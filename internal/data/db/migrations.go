package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one schema version with its forward and reverse SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Migration
	Applied   bool
	AppliedAt time.Time
}

var migrationFile = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// parseFilename splits NNNN_name.{up,down}.sql.
func parseFilename(filename string) (version int, name, direction string, err error) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", "", fmt.Errorf("expected NNNN_name.{up,down}.sql")
	}
	version, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", "", err
	}
	if version <= 0 {
		return 0, "", "", fmt.Errorf("version must be positive, got %d", version)
	}
	return version, m[2], m[3], nil
}

// loadMigrations reads the embedded files into ascending version order.
// Every version needs exactly one up and one down file sharing a name.
func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, direction, err := parseFilename(e.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %04d has two names: %q and %q", version, m.Name, name)
		}

		slot := &m.Up
		if direction == "down" {
			slot = &m.Down
		}
		if *slot != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %04d", direction, version)
		}
		*slot = string(body)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %04d (%s) needs both up and down files", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT    NOT NULL,
    applied_at INTEGER NOT NULL
)`

// appliedAt maps applied versions to when they ran.
func appliedAt(ctx context.Context, conn *sql.DB) (map[int]time.Time, error) {
	if _, err := conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[int]time.Time{}
	for rows.Next() {
		var v int
		var at int64
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = time.Unix(0, at)
	}
	return out, rows.Err()
}

// MigrationStatuses lists every known migration and whether it is applied.
func MigrationStatuses(ctx context.Context, conn *sql.DB) ([]MigrationStatus, error) {
	all, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := appliedAt(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(all))
	for _, m := range all {
		at, ok := applied[m.Version]
		out = append(out, MigrationStatus{Migration: m, Applied: ok, AppliedAt: at})
	}
	return out, nil
}

// migrateUp applies every pending migration in ascending order.
func migrateUp(ctx context.Context, conn *sql.DB) error {
	statuses, err := MigrationStatuses(ctx, conn)
	if err != nil {
		return err
	}

	for _, s := range statuses {
		if s.Applied {
			continue
		}
		log.Info().Int("version", s.Version).Str("name", s.Name).Msg("applying migration")
		err := inTx(ctx, conn, s.Up,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			s.Version, s.Name, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("migration %04d (%s): %w", s.Version, s.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the newest n applied migrations.
func MigrateDown(ctx context.Context, conn *sql.DB, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive, got %d", n)
	}
	statuses, err := MigrationStatuses(ctx, conn)
	if err != nil {
		return err
	}

	var applied []MigrationStatus
	for _, s := range slices.Backward(statuses) {
		if s.Applied {
			applied = append(applied, s)
		}
	}
	if n > len(applied) {
		return fmt.Errorf("requested %d down migrations but only %d are applied", n, len(applied))
	}

	for _, s := range applied[:n] {
		log.Info().Int("version", s.Version).Str("name", s.Name).Msg("reverting migration")
		err := inTx(ctx, conn, s.Down, "DELETE FROM schema_migrations WHERE version = ?", s.Version)
		if err != nil {
			return fmt.Errorf("revert migration %04d (%s): %w", s.Version, s.Name, err)
		}
	}
	return nil
}

// inTx runs script and then the bookkeeping statement in one transaction.
func inTx(ctx context.Context, conn *sql.DB, script, bookkeeping string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
