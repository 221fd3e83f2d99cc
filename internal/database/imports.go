package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

const importColumns = `id, name, format, version, original_spec, parsed_metadata, status,
	imported_count, failed_count, error_log, collection_id, environment, imported_by,
	created_at, updated_at`

func scanImportedSpec(row interface{ Scan(...interface{}) error }) (*ImportedSpec, error) {
	var spec ImportedSpec
	var collectionID sql.NullString
	err := row.Scan(
		&spec.ID, &spec.Name, &spec.Format, &spec.Version, &spec.OriginalSpec, &spec.ParsedMetadata, &spec.Status,
		&spec.ImportedCount, &spec.FailedCount, &spec.ErrorLog, &collectionID, &spec.Environment, &spec.ImportedBy,
		&spec.CreatedAt, &spec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	spec.CollectionID = collectionID.String
	return &spec, nil
}

// FindImportedSpecs returns imported specs matching the filter, newest first.
func (r *Repository) FindImportedSpecs(ctx context.Context, filter ImportFilter) ([]*ImportedSpec, error) {
	w := filter.where()
	query := `SELECT ` + importColumns + ` FROM imported_specs ` + w.String() + ` ORDER BY created_at DESC`

	rows, err := r.db.pool.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query imported specs: %w", err)
	}
	defer rows.Close()

	var specs []*ImportedSpec
	for rows.Next() {
		spec, err := scanImportedSpec(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan imported spec: %w", err)
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imported specs: %w", err)
	}
	return specs, nil
}

// GetImportedSpecByID returns an imported spec or an apperr NotFound error.
func (r *Repository) GetImportedSpecByID(ctx context.Context, id string) (*ImportedSpec, error) {
	specs, err := r.FindImportedSpecs(ctx, ImportFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, apperr.NotFound("import not found: %s", id)
	}
	return specs[0], nil
}

// CreateImportedSpec inserts an imported spec. ID must already be set.
func (r *Repository) CreateImportedSpec(ctx context.Context, spec *ImportedSpec) error {
	now := time.Now().UTC()
	spec.CreatedAt, spec.UpdatedAt = now, now

	query := `
		INSERT INTO imported_specs (` + importColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13, $14, $15)
	`
	_, err := r.db.pool.ExecContext(ctx, query,
		spec.ID, spec.Name, spec.Format, spec.Version, spec.OriginalSpec, spec.ParsedMetadata, spec.Status,
		spec.ImportedCount, spec.FailedCount, spec.ErrorLog, spec.CollectionID, spec.Environment, spec.ImportedBy,
		spec.CreatedAt, spec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert imported spec: %w", err)
	}

	log.Debug().
		Str("component", "repository").
		Str("import_id", spec.ID).
		Str("status", string(spec.Status)).
		Msg("Imported spec created")

	return nil
}

// UpdateImportedSpec persists the mutable outcome columns of an import.
func (r *Repository) UpdateImportedSpec(ctx context.Context, spec *ImportedSpec) error {
	spec.UpdatedAt = time.Now().UTC()

	res, err := r.db.pool.ExecContext(ctx, `
		UPDATE imported_specs SET
			status = $2, imported_count = $3, failed_count = $4, error_log = $5,
			parsed_metadata = $6, updated_at = $7
		WHERE id::text = $1 AND deleted_at IS NULL
	`, spec.ID, spec.Status, spec.ImportedCount, spec.FailedCount, spec.ErrorLog,
		spec.ParsedMetadata, spec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update imported spec: %w", err)
	}
	return expectOneRow(res, "import", spec.ID)
}

// SoftDeleteImportedSpec marks an imported spec as deleted.
func (r *Repository) SoftDeleteImportedSpec(ctx context.Context, id string) error {
	res, err := r.db.pool.ExecContext(ctx,
		`UPDATE imported_specs SET deleted_at = now() WHERE id::text = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete imported spec: %w", err)
	}
	return expectOneRow(res, "import", id)
}
