// Package database - Repository layer
//
// This file implements the Repository pattern for database operations.
// The sync engine only relies on five primitives per entity: find by
// filter, count, create, update and soft-delete.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

// Repository provides data access methods for all marketplace entities.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ============================================================================
// Routes
// ============================================================================

const routeColumns = `id, name, slug, environment, collection_id, enabled,
	introspect_authorization, tiers, upstream, downstream,
	gateway_service_id, gateway_route_id, created_at, updated_at`

func scanRoute(row interface{ Scan(...interface{}) error }) (*Route, error) {
	var route Route
	var collectionID sql.NullString
	err := row.Scan(
		&route.ID, &route.Name, &route.Slug, &route.Environment, &collectionID, &route.Enabled,
		&route.IntrospectAuthorization, &route.Tiers, &route.Upstream, &route.Downstream,
		&route.GatewayServiceID, &route.GatewayRouteID, &route.CreatedAt, &route.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	route.CollectionID = collectionID.String
	return &route, nil
}

// FindRoutes returns live routes matching the filter.
func (r *Repository) FindRoutes(ctx context.Context, filter RouteFilter) ([]*Route, error) {
	w := filter.where()
	query := `SELECT ` + routeColumns + ` FROM api_routes ` + w.String() + ` ORDER BY created_at ASC`

	rows, err := r.db.pool.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []*Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routes: %w", err)
	}

	log.Debug().
		Str("component", "repository").
		Int("count", len(routes)).
		Msg("Retrieved routes")

	return routes, nil
}

// CountRoutes counts live routes matching the filter.
func (r *Repository) CountRoutes(ctx context.Context, filter RouteFilter) (int, error) {
	w := filter.where()
	var count int
	if err := r.db.pool.QueryRowContext(ctx, `SELECT count(*) FROM api_routes `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count routes: %w", err)
	}
	return count, nil
}

// GetRouteByID returns a live route or an apperr NotFound error.
func (r *Repository) GetRouteByID(ctx context.Context, id string) (*Route, error) {
	routes, err := r.FindRoutes(ctx, RouteFilter{IDs: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, apperr.NotFound("route not found: %s", id)
	}
	return routes[0], nil
}

// CreateRoute inserts a route. ID must already be set.
func (r *Repository) CreateRoute(ctx context.Context, route *Route) error {
	now := time.Now().UTC()
	route.CreatedAt, route.UpdatedAt = now, now

	query := `
		INSERT INTO api_routes (` + routeColumns + `)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.pool.ExecContext(ctx, query,
		route.ID, route.Name, route.Slug, route.Environment, route.CollectionID, route.Enabled,
		route.IntrospectAuthorization, route.Tiers, route.Upstream, route.Downstream,
		route.GatewayServiceID, route.GatewayRouteID, route.CreatedAt, route.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert route: %w", err)
	}
	return nil
}

// UpdateRoute overwrites all mutable columns of a live route.
func (r *Repository) UpdateRoute(ctx context.Context, route *Route) error {
	route.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE api_routes SET
			name = $2, slug = $3, environment = $4, collection_id = NULLIF($5, '')::uuid,
			enabled = $6, introspect_authorization = $7, tiers = $8,
			upstream = $9, downstream = $10,
			gateway_service_id = $11, gateway_route_id = $12, updated_at = $13
		WHERE id::text = $1 AND deleted_at IS NULL
	`
	res, err := r.db.pool.ExecContext(ctx, query,
		route.ID, route.Name, route.Slug, route.Environment, route.CollectionID,
		route.Enabled, route.IntrospectAuthorization, route.Tiers,
		route.Upstream, route.Downstream,
		route.GatewayServiceID, route.GatewayRouteID, route.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update route: %w", err)
	}
	return expectOneRow(res, "route", route.ID)
}

// SoftDeleteRoute marks a route as deleted.
func (r *Repository) SoftDeleteRoute(ctx context.Context, id string) error {
	res, err := r.db.pool.ExecContext(ctx,
		`UPDATE api_routes SET deleted_at = now() WHERE id::text = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return expectOneRow(res, "route", id)
}

// ============================================================================
// Collections
// ============================================================================

// FindCollections returns live collections matching the filter.
func (r *Repository) FindCollections(ctx context.Context, filter CollectionFilter) ([]*Collection, error) {
	w := filter.where()
	query := `SELECT id, name, slug, description, created_at, updated_at FROM collections ` +
		w.String() + ` ORDER BY created_at ASC`

	rows, err := r.db.pool.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}
	return collections, nil
}

// CountCollections counts live collections matching the filter.
func (r *Repository) CountCollections(ctx context.Context, filter CollectionFilter) (int, error) {
	w := filter.where()
	var count int
	if err := r.db.pool.QueryRowContext(ctx, `SELECT count(*) FROM collections `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collections: %w", err)
	}
	return count, nil
}

// CreateCollection inserts a collection. ID must already be set.
func (r *Repository) CreateCollection(ctx context.Context, c *Collection) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.pool.ExecContext(ctx, `
		INSERT INTO collections (id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

// SoftDeleteCollection marks a collection as deleted.
func (r *Repository) SoftDeleteCollection(ctx context.Context, id string) error {
	res, err := r.db.pool.ExecContext(ctx,
		`UPDATE collections SET deleted_at = now() WHERE id::text = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return expectOneRow(res, "collection", id)
}

// ============================================================================
// Companies
// ============================================================================

// GetCompanyByID returns a live company or an apperr NotFound error.
func (r *Repository) GetCompanyByID(ctx context.Context, id string) (*Company, error) {
	var c Company
	err := r.db.pool.QueryRowContext(ctx, `
		SELECT id, name, tier, created_at, updated_at
		FROM companies
		WHERE id::text = $1 AND deleted_at IS NULL
	`, id).Scan(&c.ID, &c.Name, &c.Tier, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("company not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// ============================================================================
// Settings
// ============================================================================

// GetSettings returns all settings of one route environment.
func (r *Repository) GetSettings(ctx context.Context, environment string) (map[string]string, error) {
	rows, err := r.db.pool.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE environment = $1`, environment)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return values, nil
}

// PutSetting inserts or replaces one setting.
func (r *Repository) PutSetting(ctx context.Context, s Setting) error {
	_, err := r.db.pool.ExecContext(ctx, `
		INSERT INTO settings (environment, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (environment, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, s.Environment, s.Key, s.Value)
	if err != nil {
		return fmt.Errorf("failed to put setting: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("%s not found: %s", entity, id)
	}
	return nil
}
