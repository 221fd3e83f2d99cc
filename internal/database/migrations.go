package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order inside a single transaction. Every
// statement is idempotent so Migrate can run on every deploy.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		slug        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at  TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS collections_slug_key
		ON collections (slug) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS companies (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		tier       INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS api_routes (
		id                       UUID PRIMARY KEY,
		name                     TEXT NOT NULL,
		slug                     TEXT NOT NULL,
		environment              TEXT NOT NULL,
		collection_id            UUID REFERENCES collections (id),
		enabled                  BOOLEAN NOT NULL DEFAULT true,
		introspect_authorization BOOLEAN NOT NULL DEFAULT false,
		tiers                    BIGINT[] NOT NULL DEFAULT '{}',
		upstream                 JSONB NOT NULL,
		downstream               JSONB NOT NULL,
		gateway_service_id       TEXT NOT NULL,
		gateway_route_id         TEXT NOT NULL,
		created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at               TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS api_routes_env_name_key
		ON api_routes (environment, name) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS imported_specs (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		format          TEXT NOT NULL,
		version         TEXT NOT NULL,
		original_spec   TEXT NOT NULL,
		parsed_metadata JSONB NOT NULL DEFAULT '{}',
		status          TEXT NOT NULL,
		imported_count  INTEGER NOT NULL DEFAULT 0,
		failed_count    INTEGER NOT NULL DEFAULT 0,
		error_log       JSONB NOT NULL DEFAULT '[]',
		collection_id   UUID REFERENCES collections (id),
		environment     TEXT NOT NULL,
		imported_by     TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at      TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		environment TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (environment, key)
	)`,
}

// Migrate creates or updates the schema.
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	log.Info().
		Str("component", "database").
		Int("statements", len(migrations)).
		Msg("Schema migrations applied")

	return nil
}
