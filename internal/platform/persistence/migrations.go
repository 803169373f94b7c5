package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// ErrDirtySchema means a previous migration failed halfway and needs a manual force.
var ErrDirtySchema = errors.New("schema is dirty")

// migrator is the part of *migrate.Migrate the ledger schema upgrade uses
type migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// RunMigrations brings the ledger schema up to date. migrationsPath is a directory,
// with or without the file:// scheme.
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSource(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return applyMigrations(logger, m)
}

func migrationSource(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

func applyMigrations(logger *slog.Logger, m migrator) (err error) {
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil && sourceErr != nil {
			err = fmt.Errorf("migration source error: %w", sourceErr)
		}
		if err == nil && dbErr != nil {
			err = fmt.Errorf("migration database error: %w", dbErr)
		}
	}()

	from, dirty, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Ledger schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("failed to apply migrations from version %d: %w", from, err)
	}

	to, _, err := schemaVersion(m)
	if err != nil {
		return err
	}
	logger.Info("Ledger schema migrated", "from_version", from, "version", to)
	return nil
}

// schemaVersion reports 0 for a database no migration has touched yet
func schemaVersion(m migrator) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
