package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/app"
	"github.com/saidutt46/switchboard-marketplace/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health and metrics and keep the settings cache fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(serve)
	},
}

func registerServeCommand(root *cobra.Command) {
	root.AddCommand(serveCmd)
}

func serve(a *app.App) error {
	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("environment", cfg.Environment).
		Msg("Marketplace sync starting...")

	metrics.Init("marketplace")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if w := a.SettingsWatcher(); w != nil {
		go func() {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", "settings_watcher").Msg("Settings watcher stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      app.NewRouter(a.Health(Version), metrics.Handler()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", cfg.ServerAddress()).
			Msg("HTTP server starting")

		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info().
			Str("signal", sig.String()).
			Msg("Shutdown signal received, starting graceful shutdown...")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during graceful shutdown, forcing shutdown")
			if err := server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		log.Info().Msg("Server stopped gracefully")
	}

	return nil
}
