package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v2"

	"github.com/senyabanana/forge-service/internal/router/config"
)

var cmdMigrate = &cli.Command{
	Name:  "migrate",
	Usage: "Apply database migrations and exit",
	Action: func(cctx *cli.Context) error {
		cfg, err := config.LoadConfig(cctx.String("config"))
		if err != nil {
			return fmt.Errorf("cannot load config: %w", err)
		}
		return runDBMigration(cfg.MigrationURL, cfg.PostgresConn)
	},
}

func runDBMigration(migrationURL string, dbSource string) error {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		return fmt.Errorf("cannot create a new migrate instance: %w", err)
	}
	defer migration.Close()

	if err = migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrate up: %w", err)
	}
	log.Println("db migrated successfully")
	return nil
}
