package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/op-knockout/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// sqlx driver name for each configured database driver
var driverNames = map[string]string{
	config.DriverSQLite:   "sqlite3",
	config.DriverPostgres: "pgx",
}

func InitDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driverName, ok := driverNames[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Connect(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		// The DSN enables foreign keys per connection, this covers DSNs that don't
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, err
		}
	}

	slog.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

func newMigrate(db *sql.DB, driver, dir string) (*migrate.Migrate, error) {
	var (
		instance database.Driver
		err      error
	)

	switch driver {
	case config.DriverSQLite:
		instance, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case config.DriverPostgres:
		instance, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver instance: %w", err)
	}

	return migrate.NewWithDatabaseInstance("file://"+dir, driver, instance)
}

func RunMigrations(db *sql.DB, driver, dir string) error {
	m, err := newMigrate(db, driver, dir)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// RollbackMigrations reverts the given number of migrations; steps <= 0 reverts all.
func RollbackMigrations(db *sql.DB, driver, dir string, steps int) error {
	m, err := newMigrate(db, driver, dir)
	if err != nil {
		return err
	}

	if steps <= 0 {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}
