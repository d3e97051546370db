// Package migrations embeds the SQL schema and applies it with golang-migrate,
// either from the embedded files or from a file:// directory.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var FS embed.FS

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Run applies migrations against dsn. An empty dir uses the embedded files;
// otherwise dir is a golang-migrate source URL such as file://migrations.
// steps of 0 migrates all the way. A database already at the target version
// is not an error.
func Run(dir, dsn, direction string, steps int) error {
	m, err := open(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case DirectionUp, "":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case DirectionDown:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Version reports the applied schema version and whether it is dirty.
func Version(dir, dsn string) (uint, bool, error) {
	m, err := open(dir, dsn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func open(dir, dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, fmt.Errorf("migrations: empty database dsn")
	}
	if dir != "" {
		return migrate.New(dir, dsn)
	}
	src, err := iofs.New(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: embedded source: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, dsn)
}
