package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver, required by golang-migrate

	"github.com/iscc/iscc-hub/pkg/eventstore/postgres/migrations"
)

// runMigrations applies the events/units schema via golang-migrate.
// golang-migrate takes a PostgreSQL advisory lock internally, so concurrent
// HUB instances migrating the same database serialize safely.
func runMigrations(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("eventstore/postgres: open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("eventstore/postgres: ping: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    "iscc_hub",
	})
	if err != nil {
		return fmt.Errorf("eventstore/postgres: create migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("eventstore/postgres: create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("eventstore/postgres: create migrate instance: %w", err)
	}

	logger.Info("eventstore/postgres: applying migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("eventstore/postgres: migration failed: %w", err)
	} else if err == migrate.ErrNoChange {
		logger.Info("eventstore/postgres: schema already up to date")
	} else {
		logger.Info("eventstore/postgres: migrations applied")
	}

	return nil
}
