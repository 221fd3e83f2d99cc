// Package importer turns an externally authored API specification into
// canonical routes.
//
// An import runs decode, detect, validate and parse up front; any failure
// there rejects the whole import. Endpoints are then created one by one and
// a failing endpoint is recorded in the import's error log without stopping
// the batch. Failed endpoints can be retried later from the stored
// specification.
package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/apis"
	"github.com/saidutt46/switchboard-marketplace/internal/apispec"
	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/metrics"
	"github.com/saidutt46/switchboard-marketplace/internal/normalize"
)

// Store persists imports and collections.
type Store interface {
	GetImportedSpecByID(ctx context.Context, id string) (*database.ImportedSpec, error)
	CreateImportedSpec(ctx context.Context, spec *database.ImportedSpec) error
	UpdateImportedSpec(ctx context.Context, spec *database.ImportedSpec) error
	FindCollections(ctx context.Context, filter database.CollectionFilter) ([]*database.Collection, error)
	CreateCollection(ctx context.Context, c *database.Collection) error
}

// RouteCreator creates one canonical route, gateway first.
type RouteCreator interface {
	Create(ctx context.Context, author string, in apis.RouteInput) (*database.Route, error)
}

// Request is one import.
type Request struct {
	// Name labels the import; the specification title is used when empty.
	Name string `json:"name,omitempty"`

	Spec []byte `json:"-" validate:"required"`

	// CollectionID targets an existing collection. When empty a collection
	// named CollectionName, or the specification title, is reused or created.
	CollectionID   string `json:"collection_id,omitempty" validate:"omitempty,uuid"`
	CollectionName string `json:"collection_name,omitempty" validate:"max=200"`

	Options normalize.Options `json:"options"`
}

// Importer runs imports and retries.
type Importer struct {
	parsers *apispec.Registry
	store   Store
	routes  RouteCreator
	events  events.Publisher
}

// New creates an Importer. A nil registry means every supported format.
func New(parsers *apispec.Registry, store Store, routes RouteCreator, publisher events.Publisher) *Importer {
	if parsers == nil {
		parsers = apispec.NewRegistry()
	}
	return &Importer{parsers: parsers, store: store, routes: routes, events: publisher}
}

// Import runs the whole pipeline for req and returns the finalized import.
func (im *Importer) Import(ctx context.Context, author string, req Request) (*database.ImportedSpec, error) {
	if err := apis.Check(&req, "import request"); err != nil {
		return nil, err
	}

	doc, err := apispec.Decode(req.Spec)
	if err != nil {
		return nil, err
	}
	parser, err := im.parsers.Detect(doc)
	if err != nil {
		return nil, err
	}
	if res := parser.Validate(doc); !res.Valid {
		return nil, apperr.BadRequest("invalid %s specification", parser.Format()).WithDetails(res.Errors)
	}
	parsed, err := parser.Parse(doc)
	if err != nil {
		return nil, apperr.BadRequest("failed to parse %s specification", parser.Format()).Wrap(err)
	}

	opts := req.Options
	opts.BaseURL, err = normalize.ResolveBaseURL(opts.BaseURL, parsed.Metadata.BaseURL)
	if err != nil {
		return nil, err
	}

	collection, err := im.resolveCollection(ctx, req, parsed.Metadata)
	if err != nil {
		return nil, err
	}
	opts.CollectionID = collection.ID

	name := req.Name
	if name == "" {
		name = parsed.Metadata.Title
	}
	info := parser.SpecInfo(doc)

	meta, err := storedMetadata(parsed.Metadata, opts)
	if err != nil {
		return nil, err
	}
	spec := &database.ImportedSpec{
		ID:             uuid.NewString(),
		Name:           name,
		Format:         string(info.Format),
		Version:        info.Version,
		OriginalSpec:   string(req.Spec),
		ParsedMetadata: meta,
		Status:         database.ImportProcessing,
		ErrorLog:       database.ImportErrors{},
		CollectionID:   collection.ID,
		Environment:    opts.Environment,
		ImportedBy:     author,
	}
	if err := im.store.CreateImportedSpec(ctx, spec); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("component", "importer").
		Str("import_id", spec.ID).
		Str("format", spec.Format).
		Logger()
	logger.Info().
		Int("endpoints", len(parsed.Endpoints)).
		Str("collection_id", collection.ID).
		Msg("Import started")

	succeeded, failures := im.createRoutes(ctx, author, parsed.Metadata, parsed.Endpoints, opts)

	if err := im.finalizeImport(context.WithoutCancel(ctx), spec, succeeded, failures); err != nil {
		return nil, err
	}
	metrics.RecordImport("import", string(spec.Status), spec.ImportedCount, spec.FailedCount)

	logger.Info().
		Str("status", string(spec.Status)).
		Int("imported", spec.ImportedCount).
		Int("failed", spec.FailedCount).
		Msg("Import finished")

	im.events.Publish(ctx, events.New(events.APISpecImport, author, importMetadata(spec)))
	return spec, nil
}

// Retry re-runs the endpoints recorded as failed in import id.
func (im *Importer) Retry(ctx context.Context, author, id string) (*database.ImportedSpec, error) {
	spec, err := im.GetImportForRetry(ctx, id)
	if err != nil {
		return nil, err
	}

	parser, ok := im.parsers.Get(apispec.Format(spec.Format))
	if !ok {
		return nil, apperr.BadRequest("import %s has unsupported format %q", id, spec.Format)
	}
	doc, err := apispec.Decode([]byte(spec.OriginalSpec))
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(doc)
	if err != nil {
		return nil, apperr.BadRequest("failed to parse stored specification of import %s", id).Wrap(err)
	}
	opts, err := storedOptions(spec)
	if err != nil {
		return nil, err
	}

	endpoints, stale := retryTargets(spec.ErrorLog, parsed.Endpoints)
	succeeded, failures := im.createRoutes(ctx, author, parsed.Metadata, endpoints, opts)
	// Entries whose endpoint no longer resolves stay failed.
	failures = append(failures, stale...)

	if err := im.updateImportAfterRetry(context.WithoutCancel(ctx), spec, succeeded, failures); err != nil {
		return nil, err
	}
	metrics.RecordImport("retry", string(spec.Status), succeeded, len(spec.ErrorLog))

	log.Info().
		Str("component", "importer").
		Str("import_id", spec.ID).
		Int("retried", len(endpoints)).
		Int("succeeded", succeeded).
		Int("remaining", spec.FailedCount).
		Str("status", string(spec.Status)).
		Msg("Import retry finished")

	meta := importMetadata(spec)
	meta["retried"] = len(endpoints)
	meta["succeeded"] = succeeded
	im.events.Publish(ctx, events.New(events.APISpecRetry, author, meta))
	return spec, nil
}

// GetImportForRetry returns import id if it is partial or failed and still
// has recorded failures.
func (im *Importer) GetImportForRetry(ctx context.Context, id string) (*database.ImportedSpec, error) {
	spec, err := im.store.GetImportedSpecByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if spec.Status != database.ImportPartial && spec.Status != database.ImportFailed {
		return nil, apperr.BadRequest("import %s is %s and cannot be retried", id, spec.Status)
	}
	if len(nonEmpty(spec.ErrorLog)) == 0 {
		return nil, apperr.BadRequest("import %s has no failed endpoints to retry", id)
	}
	return spec, nil
}

// createRoutes creates one route per endpoint, in order. Once ctx is done
// the remaining endpoints are recorded as failed without being attempted.
func (im *Importer) createRoutes(ctx context.Context, author string, meta apispec.Metadata, endpoints []apispec.Endpoint, opts normalize.Options) (int, []database.ImportError) {
	succeeded := 0
	var failures []database.ImportError

	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			failures = append(failures, database.ImportError{Endpoint: ep.Key(), Name: ep.Name, Error: err.Error()})
			continue
		}
		if err := im.createRoute(ctx, author, meta, ep, opts); err != nil {
			log.Warn().
				Err(err).
				Str("component", "importer").
				Str("endpoint", ep.Key()).
				Msg("Endpoint import failed")
			failures = append(failures, database.ImportError{Endpoint: ep.Key(), Name: ep.Name, Error: err.Error()})
			continue
		}
		succeeded++
	}
	return succeeded, failures
}

func (im *Importer) createRoute(ctx context.Context, author string, meta apispec.Metadata, ep apispec.Endpoint, opts normalize.Options) error {
	draft, err := normalize.EndpointToRoute(meta, ep, opts)
	if err != nil {
		return err
	}
	_, err = im.routes.Create(ctx, author, apis.InputFromRoute(draft))
	return err
}

// finalizeImport records the outcome of the first pass.
func (im *Importer) finalizeImport(ctx context.Context, spec *database.ImportedSpec, succeeded int, failures []database.ImportError) error {
	spec.ErrorLog = nonEmpty(failures)
	spec.ImportedCount = succeeded
	spec.FailedCount = len(spec.ErrorLog)
	spec.Status = database.ImportCompleted
	if spec.FailedCount > 0 {
		spec.Status = database.ImportPartial
	}
	return im.store.UpdateImportedSpec(ctx, spec)
}

// updateImportAfterRetry adds the new successes to the imported count and
// replaces the error log with the failures that remain.
func (im *Importer) updateImportAfterRetry(ctx context.Context, spec *database.ImportedSpec, succeeded int, failures []database.ImportError) error {
	spec.ImportedCount += succeeded
	spec.ErrorLog = nonEmpty(failures)
	spec.FailedCount = len(spec.ErrorLog)
	switch {
	case spec.FailedCount == 0:
		spec.Status = database.ImportCompleted
	case succeeded > 0:
		spec.Status = database.ImportPartial
	default:
		spec.Status = database.ImportFailed
	}
	return im.store.UpdateImportedSpec(ctx, spec)
}

func (im *Importer) resolveCollection(ctx context.Context, req Request, meta apispec.Metadata) (*database.Collection, error) {
	if req.CollectionID != "" {
		found, err := im.store.FindCollections(ctx, database.CollectionFilter{ID: req.CollectionID})
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, apperr.NotFound("collection not found: %s", req.CollectionID)
		}
		return found[0], nil
	}

	name := req.CollectionName
	if name == "" {
		name = meta.Title
	}
	slug := normalize.Slugify(name)
	if slug == "" {
		return nil, apperr.BadRequest("a collection name is required when the specification has no title")
	}

	found, err := im.store.FindCollections(ctx, database.CollectionFilter{Slug: slug})
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return found[0], nil
	}

	c := &database.Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: meta.Description,
	}
	if err := im.store.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// retryTargets pairs every error log entry with one parsed endpoint of the
// same key and, when recorded, the same name. Each endpoint is claimed at
// most once, so items sharing a key are retried individually. Entries left
// unpaired are returned as stale.
func retryTargets(errLog []database.ImportError, endpoints []apispec.Endpoint) ([]apispec.Endpoint, []database.ImportError) {
	claimed := make([]bool, len(endpoints))
	var stale []database.ImportError
	for _, e := range errLog {
		found := false
		for i, ep := range endpoints {
			if claimed[i] || ep.Key() != e.Endpoint || (e.Name != "" && ep.Name != e.Name) {
				continue
			}
			claimed[i] = true
			found = true
			break
		}
		if !found {
			stale = append(stale, e)
		}
	}

	var targets []apispec.Endpoint
	for i, ep := range endpoints {
		if claimed[i] {
			targets = append(targets, ep)
		}
	}
	return targets, stale
}

func nonEmpty(entries []database.ImportError) database.ImportErrors {
	out := database.ImportErrors{}
	for _, e := range entries {
		if e.Endpoint == "" || e.Error == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func importMetadata(spec *database.ImportedSpec) map[string]interface{} {
	return map[string]interface{}{
		"import_id":      spec.ID,
		"name":           spec.Name,
		"format":         spec.Format,
		"environment":    spec.Environment,
		"collection_id":  spec.CollectionID,
		"status":         string(spec.Status),
		"imported_count": spec.ImportedCount,
		"failed_count":   spec.FailedCount,
	}
}

type parsedMetadata struct {
	Metadata apispec.Metadata  `json:"metadata"`
	Options  normalize.Options `json:"options"`
}

func storedMetadata(meta apispec.Metadata, opts normalize.Options) (database.JSONMap, error) {
	data, err := json.Marshal(parsedMetadata{Metadata: meta, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("encode import metadata: %w", err)
	}
	var out database.JSONMap
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode import metadata: %w", err)
	}
	return out, nil
}

func storedOptions(spec *database.ImportedSpec) (normalize.Options, error) {
	data, err := json.Marshal(spec.ParsedMetadata)
	if err != nil {
		return normalize.Options{}, fmt.Errorf("decode import metadata: %w", err)
	}
	var pm parsedMetadata
	if err := json.Unmarshal(data, &pm); err != nil {
		return normalize.Options{}, fmt.Errorf("decode import metadata: %w", err)
	}
	if pm.Options.Environment == "" {
		pm.Options.Environment = spec.Environment
	}
	if pm.Options.CollectionID == "" {
		pm.Options.CollectionID = spec.CollectionID
	}
	return pm.Options, nil
}
