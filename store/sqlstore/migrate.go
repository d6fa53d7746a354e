package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrate applies all pending up migrations.
//
// SQLite migrates over the store's own handle (its single connection must
// stay open, so the migrate instance is never closed). PostgreSQL uses a
// short-lived pool of its own that is closed when done.
func (s *Store) migrate(dsn string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var (
		driver database.Driver
		name   string
	)
	switch s.dialect {
	case dialectSQLite:
		name = "sqlite3"
		driver, err = sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	case dialectPostgres:
		name = "pgx5"
		var db *sql.DB
		db, err = sql.Open(DriverPostgres, dsn)
		if err != nil {
			return err
		}
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		if err != nil {
			db.Close()
			return err
		}
	}
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return err
	}
	if s.dialect == dialectPostgres {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
