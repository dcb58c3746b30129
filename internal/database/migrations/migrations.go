package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// CheckSchemaStatus verifies that the database schema is at the latest
// version. Returns an error describing any mismatch.
func CheckSchemaStatus(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// m is not closed here: closing it would close db, which the caller owns.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (run migrate)")
		}
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d (a migration failed previously)", version)
	}

	latest, err := latestVersion()
	if err != nil {
		return fmt.Errorf("determining latest version: %w", err)
	}
	if version < latest {
		return fmt.Errorf("schema at version %d, latest is %d (run migrate)", version, latest)
	}
	if version > latest {
		return fmt.Errorf("schema version %d is ahead of binary version %d (update the binary)", version, latest)
	}
	return nil
}

// MigrateUp runs all pending migrations. Already-current databases are a
// no-op.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading migration files: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating database driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
}

// latestVersion scans the embedded files for the highest migration number.
func latestVersion() (uint, error) {
	entries, err := migrationFiles.ReadDir("files")
	if err != nil {
		return 0, err
	}
	var versions []uint
	for _, entry := range entries {
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		v, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}
		versions = append(versions, uint(v))
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions[len(versions)-1], nil
}
