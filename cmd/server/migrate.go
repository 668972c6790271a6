package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/config"
	"github.com/Simplici0/pricecalc/internal/db"
	"github.com/Simplici0/pricecalc/internal/log"
	"github.com/Simplici0/pricecalc/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		defer database.Close()

		if err := migrations.Up(database); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		version, err := migrations.Version(database)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		zap.S().Named("migrate").Infow("db migrated", "version", version)
		return nil
	},
}
