package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/urfave/cli/v3"
)

// setupConfig reads the config named by --config, falling back to defaults when it is absent or broken.
func (r *Runner) setupConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		r.logger.Info("config file not found, using defaults", "path", path)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupDatabase creates the local database and brings its schema up to date.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.setupConfig(cmd.String("config"))
	dbPath := config.Database.Path

	db, err := shared.NewDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	before, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	after, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.logger.Info("database ready", "path", dbPath, "from", before, "to", after)
	if before == after {
		return r.writePlain("✓ Database ready at %s (schema v%d, up to date)\n", dbPath, after)
	}
	return r.writePlain("✓ Database ready at %s (schema v%d)\n", dbPath, after)
}

// SetupConfig writes the example configuration and checks that it loads.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load created config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Configuration written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set api.base_url and, for Google sign-in, the [auth.google] credentials\n")
	r.writePlain("2. Run 'tuneshop auth login --email you@example.com'\n")
	return nil
}
