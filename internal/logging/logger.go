// Package logging provides structured logging using zerolog.
//
// It configures the global zerolog logger and provides helpers that attach
// the identifiers the sync engine logs most often.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger.
//
// Should be called once during application initialization.
func Setup(level string, format string) error {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	// Caller information in development
	if format == "console" {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().
		Str("level", level).
		Str("format", format).
		Msg("Logger initialized")

	return nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent adds a component name to the logger context.
//
//	logger := logging.WithComponent("gateway_sync")
//	logger.Info().Str("route_id", id).Msg("Route synchronized")
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithEnvironment adds the component and the route environment.
func WithEnvironment(component, environment string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("environment", environment).
		Logger()
}

// LogPanic logs a recovered panic with stack trace.
func LogPanic(recovered interface{}) {
	log.Error().
		Interface("panic", recovered).
		Stack().
		Msg("Panic recovered")
}
