package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"time"
)

// Migration filename parsing constants.
const (
	// migrationFilenameParts is the expected number of parts in a migration filename.
	// Format: YYYYMMDD_HHMMSS_description.up.sql (3 parts when split by "_")
	migrationFilenameParts = 3

	// minVersionParts is the minimum parts needed to extract a version.
	minVersionParts = 2
)

// MigrationsFS is set by the migrations package to the embedded SQL files.
// The shipped files use the SQLite dialect; Postgres deployments own their
// schema (Supabase migrations) and do not call Migrate.
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
// Can be set to "." if files are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// Migration represents a single database migration.
type Migration struct {
	// Version is the migration version number (extracted from filename).
	// Format: YYYYMMDD_HHMMSS (e.g., 20260118_120000)
	Version string

	// Name is the human-readable migration name.
	Name string

	// UpSQL contains the SQL to apply this migration.
	UpSQL string

	// DownSQL contains the SQL to rollback this migration.
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// migrationRow is the scan target for schema_migrations.
type migrationRow struct {
	Version   string `db:"version"`
	AppliedAt string `db:"applied_at"`
}

// MigrationStatus compares the embedded migrations with schema_migrations.
type MigrationStatus struct {
	// Applied migrations, oldest first.
	Applied []MigrationRecord
	// Pending migrations in the order Migrate would apply them.
	Pending []Migration
}

// Current returns the newest applied version, or "" on an empty schema.
func (s MigrationStatus) Current() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Migrate applies all pending migrations, oldest first, and returns the
// ones it applied.
//
// Each migration runs in its own transaction. If migration N fails the
// earlier ones stay committed, N is rolled back and the rest are not
// attempted; running Migrate again continues from N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - []Migration: migrations applied by this call
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) ([]Migration, error) {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}

	for i, m := range status.Pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return status.Pending[:i], fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return status.Pending, nil
}

// Rollback reverts the newest applied migration with its down SQL and
// returns it. It returns nil when nothing is applied.
//
// The catalog tables carry venue data, so this is meant for development
// schemas and for the migrate down command.
func (db *DB) Rollback(ctx context.Context) (*Migration, error) {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	current := status.Current()
	if current == "" {
		return nil, nil
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	idx := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == current })
	if idx < 0 {
		return nil, fmt.Errorf("migration %s is applied but not embedded", current)
	}
	m := migrations[idx]
	if m.DownSQL == "" {
		return nil, fmt.Errorf("migration %s (%s) has no down SQL", m.Version, m.Name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
		return nil, fmt.Errorf("reverting %s (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("DELETE FROM schema_migrations WHERE version = ?"),
		m.Version,
	); err != nil {
		return nil, fmt.Errorf("removing migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rollback: %w", err)
	}
	return &m, nil
}

// MigrationStatus reports applied and pending migrations, creating the
// schema_migrations table on a fresh database.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("getting applied migrations: %w", err)
	}

	status := MigrationStatus{Applied: applied}
	for _, m := range migrations {
		if !slices.ContainsFunc(applied, func(r MigrationRecord) bool { return r.Version == m.Version }) {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist.
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// getAppliedMigrations returns all migrations that have been applied.
func (db *DB) getAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	var rows []migrationRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	); err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}

	records := make([]MigrationRecord, 0, len(rows))
	for _, row := range rows {
		// Format is written by applyMigration.
		appliedAt, _ := time.Parse(time.RFC3339, row.AppliedAt) //nolint:errcheck // format is controlled
		records = append(records, MigrationRecord{Version: row.Version, AppliedAt: appliedAt})
	}
	return records, nil
}

// applyMigration applies a single migration within a transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	// Execute the up SQL
	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	// Record the migration
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// loadMigrations loads all migration files from the embedded filesystem.
func loadMigrations() ([]Migration, error) {
	// Check if MigrationsFS has been set
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil // No embedded migrations
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		// Directory might not exist if no migrations
		return nil, nil
	}

	// Categorise migration files by version
	upFiles, downFiles := categoriseMigrationFiles(entries)

	// Build migration list from categorised files
	migrations, err := buildMigrations(upFiles, downFiles)
	if err != nil {
		return nil, err
	}

	// Sort by version (oldest first)
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// categoriseMigrationFiles groups migration files by version and direction.
func categoriseMigrationFiles(entries []fs.DirEntry) (upFiles, downFiles map[string]string) {
	upFiles = make(map[string]string)
	downFiles = make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		version, isUp, ok := parseMigrationFilename(name)
		if !ok {
			continue
		}

		if isUp {
			upFiles[version] = name
		} else {
			downFiles[version] = name
		}
	}

	return upFiles, downFiles
}

// parseMigrationFilename extracts version and direction from a migration filename.
// Returns version, isUp (true for .up.sql, false for .down.sql), and ok (true if valid).
func parseMigrationFilename(name string) (version string, isUp bool, ok bool) {
	if !strings.HasSuffix(name, ".sql") {
		return "", false, false
	}

	base := strings.TrimSuffix(name, ".sql")

	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		isUp = false
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", false, false
	}

	// Extract version (YYYYMMDD_HHMMSS from YYYYMMDD_HHMMSS_description)
	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < minVersionParts {
		return "", false, false
	}

	version = parts[0] + "_" + parts[1]
	return version, isUp, true
}

// buildMigrations creates Migration structs from categorised files.
func buildMigrations(upFiles, downFiles map[string]string) ([]Migration, error) {
	var migrations []Migration

	for version, upFile := range upFiles {
		m, err := buildMigration(version, upFile, downFiles[version])
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}

// buildMigration creates a single Migration from its files.
func buildMigration(version, upFile, downFile string) (Migration, error) {
	upSQL, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, upFile))
	if err != nil {
		return Migration{}, fmt.Errorf("reading %s: %w", upFile, err)
	}

	m := Migration{
		Version: version,
		Name:    extractMigrationName(upFile),
		UpSQL:   string(upSQL),
	}

	if downFile != "" {
		downSQL, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, downFile))
		if err != nil {
			return Migration{}, fmt.Errorf("reading %s: %w", downFile, err)
		}
		m.DownSQL = string(downSQL)
	}

	return m, nil
}

// extractMigrationName extracts a human-readable name from the filename.
// Example: "20260118_120000_initial_schema.up.sql" -> "initial_schema"
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) >= migrationFilenameParts {
		return parts[minVersionParts] // The description part
	}
	return base
}
