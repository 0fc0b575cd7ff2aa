package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"ride-tracker/internal/general/config"
	"ride-tracker/internal/general/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration directions accepted by Migrate.
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

var ErrUnknownDirection = errors.New("unknown migration direction")

// MigrationSource returns the embedded schema migrations.
func MigrationSource() (source.Driver, error) {
	return iofs.New(migrationFS, "migrations")
}

// Migrate applies (up) or reverts (down) the embedded migrations.
// It waits for the database to accept connections first.
func Migrate(ctx context.Context, cfg *config.Config, logger *logger.Logger, direction string) error {
	if direction != MigrateUp && direction != MigrateDown {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := waitForDB(ctx, db, logger); err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	src, err := MigrationSource()
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not start migrations: %w", err)
	}

	if direction == MigrateUp {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", verr)
	}
	logger.Info(ctx, "migrations_applied", "Database migrations applied", map[string]any{
		"direction": direction,
		"version":   version,
		"dirty":     dirty,
		"no_change": errors.Is(err, migrate.ErrNoChange),
	})
	return nil
}

func waitForDB(ctx context.Context, db *sql.DB, logger *logger.Logger) error {
	const attempts = 10
	var err error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		logger.Warn(ctx, "db_wait", "Waiting for the database to be ready", err, map[string]any{"attempt": i})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("could not connect to the database: %w", err)
}
