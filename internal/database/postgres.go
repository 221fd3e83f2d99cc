// Package database provides PostgreSQL connectivity and the repositories
// consumed by the sync engine.
//
// This package handles:
//   - Database connection pool management
//   - Health checks and connection verification
//   - Schema migrations
//   - Find / count / create / update / soft-delete for routes, collections,
//     companies, imported specs and settings
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/config"
)

// DB wraps the sql.DB connection pool.
type DB struct {
	pool *sql.DB
}

// NewDB creates a new database connection pool with the provided configuration.
//
// It establishes a connection, configures the pool, and verifies connectivity.
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	log.Info().
		Str("component", "database").
		Msg("Connecting to PostgreSQL...")

	pool, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{pool: pool}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("component", "database").
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Dur("conn_max_lifetime", cfg.ConnMaxLifetime).
		Msg("Database connection established")

	return db, nil
}

// Pool returns the underlying *sql.DB connection pool.
func (db *DB) Pool() *sql.DB {
	return db.pool
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Health checks the database and returns pool statistics.
func (db *DB) Health(ctx context.Context) map[string]interface{} {
	health := make(map[string]interface{})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	stats := db.pool.Stats()

	health["status"] = "healthy"
	health["open_connections"] = stats.OpenConnections
	health["in_use"] = stats.InUse
	health["idle"] = stats.Idle
	health["wait_count"] = stats.WaitCount
	health["wait_duration_ms"] = stats.WaitDuration.Milliseconds()

	return health
}

// Close gracefully closes the database connection pool.
func (db *DB) Close() error {
	log.Info().
		Str("component", "database").
		Msg("Closing database connection pool...")

	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("failed to close database pool: %w", err)
	}
	return nil
}

// Begin starts a new database transaction.
//
//	tx, err := db.Begin(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	// ... do work ...
//
//	return tx.Commit()
func (db *DB) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}
