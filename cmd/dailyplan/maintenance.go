package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dailyplan/internal/repository"
	"dailyplan/internal/service"
)

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			db, err := repository.NewDB(cfg.DatabaseURL, logger)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			logger.Info("schema is up to date")
			return nil
		},
	}
}

func cleanupCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete empty journals once, outside the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			db, err := repository.NewDB(cfg.DatabaseURL, logger)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			journals := service.NewJournalService(repository.NewJournalRepository(db))
			return service.CleanupJob(journals, logger)(cmd.Context())
		},
	}
}
