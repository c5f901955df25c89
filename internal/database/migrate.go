package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sentinnell/analytics_api/internal/utils"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// RunMigrations brings the schema up to date using golang-migrate. Read-only
// deployments ship a prepared file, so it refuses to run there.
func (s *Store) RunMigrations(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("%w: migrations", utils.ErrReadOnly)
	}

	err := s.retry.Do(ctx, "migrate", func(ctx context.Context) error {
		src, err := iofs.New(migrationFS, "migrations")
		if err != nil {
			return fmt.Errorf("could not open migration source: %w", err)
		}

		driver, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("could not create migration driver: %w", err)
		}

		m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			return fmt.Errorf("could not create migration instance: %w", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not run migrations: %w", err)
		}
		return nil
	})
	return classify("migrate", err)
}
