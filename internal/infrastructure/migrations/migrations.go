// Package migrations provides database migration support for flowstate.
//
// It embeds the SQL migration files and applies them with golang-migrate
// through a custom SQLite driver compatible with ncruces/go-sqlite3
// (CGO-free). The stock golang-migrate sqlite3 driver imports
// github.com/mattn/go-sqlite3, which collides with the ncruces driver's
// "sqlite3" registration, so a mattn-free driver is maintained here.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var embeddedFS embed.FS

// FS returns the embedded filesystem with the migration SQL files.
func FS() fs.FS {
	return embeddedFS
}

// Run applies all pending migrations to the database. A database that is
// already fully migrated is not an error (migrate.ErrNoChange is handled
// here).
func Run(db *sql.DB) error {
	source, err := iofs.New(embeddedFS, ".")
	if err != nil {
		return err
	}

	driver, err := WithInstance(db, &Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
