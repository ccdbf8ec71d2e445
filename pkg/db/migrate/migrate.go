package migrate

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// MigrateDb applies all pending migrations.
// Supported urls: postgres://, postgresql:// and sqlite://
func MigrateDb(dbURI string) error {
	dir, target, err := resolve(dbURI)
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations, dir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, target)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// resolve returns the migration directory and the url for the migrate driver
func resolve(dbURI string) (dir, target string, err error) {
	switch {
	case strings.HasPrefix(dbURI, "postgresql://"):
		return "migrations/postgres",
			strings.Replace(dbURI, "postgresql://", "pgx5://", 1), nil
	case strings.HasPrefix(dbURI, "postgres://"):
		return "migrations/postgres",
			strings.Replace(dbURI, "postgres://", "pgx5://", 1), nil
	case strings.HasPrefix(dbURI, "sqlite://"):
		return "migrations/sqlite", dbURI, nil
	default:
		return "", "", fmt.Errorf("unsupported database url: %s", dbURI)
	}
}
