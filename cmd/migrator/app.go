package migrator

import (
	"context"

	"ride-tracker/internal/general/config"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/general/postgres"
)

// Run applies or reverts the schema migrations and returns.
func Run(ctx context.Context, configPath, direction string) error {
	logger := logger.New("migrator")
	ctx = logger.WithRequestID(ctx, "migrate-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	if err := postgres.Migrate(ctx, cfg, logger, direction); err != nil {
		logger.Error(ctx, "migration_failed", "Database migration failed", err, map[string]any{"direction": direction})
		return err
	}
	return nil
}
