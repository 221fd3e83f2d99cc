// Package main is the entrypoint for the marketplace sync engine.
//
// The engine keeps the gateway control plane (services, routes, plugins,
// consumers and ACL groups) consistent with the marketplace's canonical
// route definitions, and imports routes from OpenAPI, Swagger and Postman
// documents.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/app"
	"github.com/saidutt46/switchboard-marketplace/internal/config"
	"github.com/saidutt46/switchboard-marketplace/internal/logging"
)

// Version information (set during build via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	cfg    *config.Config
	author string
)

var rootCmd = &cobra.Command{
	Use:           "marketplace-sync",
	Short:         "Reconcile marketplace API routes with the gateway",
	Long:          "marketplace-sync keeps gateway services, routes, plugins and consumer grants consistent with the marketplace's route definitions.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; production uses real environment variables
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found, using environment variables")
		} else {
			log.Debug().Msg("Loaded configuration from .env file")
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := logging.Setup(loaded.LogLevel, loaded.LogFormat); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	defaultAuthor := os.Getenv("USER")
	if defaultAuthor == "" {
		defaultAuthor = "marketplace-sync"
	}
	rootCmd.PersistentFlags().StringVar(&author, "author", defaultAuthor, "Author recorded on emitted events")

	registerServeCommand(rootCmd)
	registerMigrateCommand(rootCmd)
	registerImportCommand(rootCmd)
	registerAccessCommand(rootCmd)
	registerRouteCommand(rootCmd)
	registerSettingsCommand(rootCmd)
	registerCollectionCommand(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(fn func(a *app.App) error) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing connections")
		}
	}()
	return fn(a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
