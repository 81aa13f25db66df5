// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/database"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Commands returns the maintenance subcommands of the app binary.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Start the HTTP API (default)",
			Action: Run,
		},
		{
			Name:  "migrate",
			Usage: "Manage the database schema",
			Commands: []*cli.Command{
				{Name: "up", Usage: "Apply all pending migrations", Action: withConnection(database.RunMigrations)},
				{Name: "down", Usage: "Roll back the last migration", Action: withConnection(database.MigrateDown)},
				{Name: "status", Usage: "Show applied migrations", Action: withConnection(database.MigrationStatus)},
				{Name: "reset", Usage: "Roll back all migrations", Action: withConnection(database.MigrateReset)},
			},
		},
		{
			Name:   "seed",
			Usage:  "Create the demo patient and doctor accounts",
			Action: Seed,
		},
		{
			Name:   "purge-tokens",
			Usage:  "Delete expired verification tokens",
			Action: PurgeTokens,
		},
	}
}

func withConnection(fn func(*sqlx.DB) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		setupLogger(cfg.Log.Level, cfg.Log.Format)

		db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			_ = db.Close()
		}()

		return fn(db)
	}
}

// Seed creates the demo accounts and exits.
func Seed(ctx context.Context, cmd *cli.Command) error {
	return withServices(cmd, func(cfg *config.Config, services *Services) error {
		return seedDemo(ctx, services.Auth, cfg.Seed.DemoPassword)
	})
}

// PurgeTokens deletes expired verification tokens once and exits.
func PurgeTokens(ctx context.Context, cmd *cli.Command) error {
	return withServices(cmd, func(_ *config.Config, services *Services) error {
		n, err := services.Tokens.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		slog.Info("tokens_purged", "count", n)
		return nil
	})
}

func withServices(cmd *cli.Command, fn func(*config.Config, *Services) error) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	services, err := NewServices(cfg, db)
	if err != nil {
		return err
	}
	return fn(cfg, services)
}
