package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/repositories"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/desertthunder/tuneshop/internal/tasks"
	"github.com/desertthunder/tuneshop/internal/ui"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

var styles = ui.Styles()

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	config := shared.DefaultConfig()
	configPath := os.Getenv("TUNESHOP_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.Validate(); err != nil {
		logger.Fatalf("configuration error: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	db, err := openDatabase(config)
	if err != nil {
		logger.Fatalf("database error: %v", err)
	}
	defer db.Close()

	checkouts, closeCheckouts, err := openCheckoutStore(ctx, config, db, logger)
	if err != nil {
		logger.Fatalf("session store error: %v", err)
	}
	defer closeCheckouts()

	runner := NewRunner(RunnerOpts{
		Config:      config,
		HTTPClient:  &http.Client{Timeout: config.API.Timeout.Duration},
		Logger:      logger,
		Credentials: repositories.NewCredentialRepository(db),
		Checkouts:   checkouts,
	})
	if err := runner.Restore(ctx); err != nil {
		logger.Warn("starting without a restored session", "error", err)
	}

	app := &cli.Command{
		Name:     "tuneshop",
		Usage:    "Cart and checkout client for the music storefront",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, styles.Err("✗ "+shared.UserMessage(err)))
		os.Exit(1)
	}
}

func openDatabase(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// browsingSessionID names the session the checkout context belongs to. Commands run from
// the same shell share it unless TUNESHOP_SESSION says otherwise.
func browsingSessionID() string {
	if id := os.Getenv("TUNESHOP_SESSION"); id != "" {
		return id
	}
	return fmt.Sprintf("ppid-%d", os.Getppid())
}

// openCheckoutStore builds the session-scoped checkout store selected by [shared.SessionConfig].
func openCheckoutStore(ctx context.Context, config *shared.Config, db *sql.DB, logger *log.Logger) (tasks.SessionStore, func(), error) {
	sessionID := browsingSessionID()
	ttl := config.Session.TTL.Duration

	switch config.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: config.Session.RedisAddr,
			DB:   config.Session.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("%w: redis at %s: %w", shared.ErrServiceUnavailable, config.Session.RedisAddr, err)
		}
		logger.Debug("using redis session store", "addr", config.Session.RedisAddr, "session", sessionID)
		return repositories.NewRedisCheckoutStore(client, sessionID, ttl), func() { client.Close() }, nil
	default:
		repo := repositories.NewCheckoutContextRepository(db, sessionID, ttl)
		if n, err := repo.PurgeIdle(ctx); err != nil {
			logger.Warn("failed to purge idle checkout sessions", "error", err)
		} else if n > 0 {
			logger.Debug("purged idle checkout sessions", "count", n)
		}
		return repo, func() {}, nil
	}
}
