package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erazemk/lostfound/internal/db"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and its schema",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDatabase(func(*sql.DB) error {
				log.Info().Msg("Database initialized")
				return nil
			})
		},
	}
}

// withDatabase loads the configuration, opens the database with its schema
// in place and runs fn on it.
func withDatabase(fn func(*sql.DB) error) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	log.Debug().Str("path", cfg.DBPath).Msg("Database ready")
	return fn(database)
}
