package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			return err
		}
		log.Info().Msg("Database migrated")
		return nil
	},
}

func registerMigrateCommand(root *cobra.Command) {
	root.AddCommand(migrateCmd)
}
