// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sqlx.DB) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	return goose.Up(db.DB, "migrations")
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	return goose.Down(db.DB, "migrations")
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sqlx.DB) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	return goose.Reset(db.DB, "migrations")
}

// MigrationStatus logs the applied state of every migration.
func MigrationStatus(db *sqlx.DB) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	return goose.Status(db.DB, "migrations")
}

func prepareGoose(db *sqlx.DB) error {
	goose.SetBaseFS(embedMigrations)
	return goose.SetDialect(gooseDialect(db.DriverName()))
}

func gooseDialect(driverName string) string {
	if driverName == "pgx" {
		return "postgres"
	}
	return "sqlite3"
}
