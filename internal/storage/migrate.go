package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration for the dialect.
//
// PostgreSQL migrations run on a separate connection to avoid interfering
// with the main pool. SQLite migrations reuse db, since a ":memory:"
// database exists only on its own connection; the migrate instance is then
// left open because closing it would close db.
func RunMigrations(db *sql.DB, dialect Dialect, dsn string) error {
	switch dialect {
	case SQLite:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite driver: %w", err)
		}
		return up(driver, dialect, nil)

	case Postgres:
		migrateDB, err := sql.Open(dialect.driverName(), dsn)
		if err != nil {
			return fmt.Errorf("open migration database: %w", err)
		}
		defer migrateDB.Close()

		driver, err := migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
		if err != nil {
			return fmt.Errorf("create pgx driver: %w", err)
		}
		return up(driver, dialect, func(m *migrate.Migrate) { m.Close() })
	}
	return fmt.Errorf("unsupported dialect: %s", dialect)
}

func up(driver database.Driver, dialect Dialect, closeFn func(*migrate.Migrate)) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if closeFn != nil {
		defer closeFn(m)
	} else {
		defer src.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
