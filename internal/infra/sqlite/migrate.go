// Migration runner. SQL files are embedded into the binary and applied in
// filename order; applied versions are tracked in schema_migrations.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// MigrateUp applies all pending *.up.sql migrations in order, one transaction
// per file. Already-applied versions are skipped.
func MigrateUp(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	files, err := loadMigrationFiles(migrations)
	if err != nil {
		return fmt.Errorf("migrate: load files: %w", err)
	}

	for _, f := range files {
		applied, checkErr := isMigrationApplied(db, f.version)
		if checkErr != nil {
			return fmt.Errorf("migrate: check applied %d: %w", f.version, checkErr)
		}
		if applied {
			continue
		}
		if applyErr := applyMigration(db, f); applyErr != nil {
			return fmt.Errorf("migrate: apply %s: %w", f.name, applyErr)
		}
	}

	return nil
}

// MigrationVersion returns the highest applied version, or 0.
func MigrationVersion(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	var version int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}
	return version, nil
}

// LatestVersion returns the highest version bundled in the binary.
func LatestVersion() (int, error) {
	files, err := loadMigrationFiles(migrations)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	return files[len(files)-1].version, nil
}

type migrationFile struct {
	version int
	name    string // e.g. "001_diagnosis_history.up.sql"
	sql     string
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// loadMigrationFiles reads every *.up.sql under migrations/ in fsys, sorted
// by version. A file without a numeric prefix is an error.
func loadMigrationFiles(fsys fs.FS) ([]migrationFile, error) {
	var files []migrationFile

	err := fs.WalkDir(fsys, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return nil
		}
		version := versionFromFilename(d.Name())
		if version <= 0 {
			return fmt.Errorf("migration %s has no version prefix", d.Name())
		}
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, migrationFile{version: version, name: d.Name(), sql: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	for i := 1; i < len(files); i++ {
		if files[i].version == files[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d", files[i].version)
		}
	}
	return files, nil
}

// versionFromFilename parses the numeric prefix: "001_x.up.sql" → 1.
func versionFromFilename(name string) int {
	var version int
	if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
		return 0
	}
	return version
}

func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyMigration(db *sql.DB, f migrationFile) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after Commit
	}()

	if _, execErr := tx.Exec(f.sql); execErr != nil {
		return fmt.Errorf("exec SQL: %w", execErr)
	}
	if _, execErr := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		f.version, f.name,
	); execErr != nil {
		return fmt.Errorf("record migration: %w", execErr)
	}
	return tx.Commit()
}
