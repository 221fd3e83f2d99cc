// Package database - Data models
//
// This file contains Go structs that map to PostgreSQL tables.
// Nested documents (upstream, downstream, error logs, metadata) are stored
// as JSONB and implement sql.Scanner / driver.Valuer.
package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// KeyValue is a literal injected into the upstream request.
type KeyValue struct {
	Key   string `json:"key" yaml:"key" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// Upstream describes where the gateway forwards a request.
type Upstream struct {
	URL         string     `json:"url" yaml:"url" validate:"required,url"`
	Method      string     `json:"method" yaml:"method" validate:"required,http_method"`
	Headers     []KeyValue `json:"headers,omitempty" yaml:"headers" validate:"dive"`
	Querystring []KeyValue `json:"querystring,omitempty" yaml:"querystring" validate:"dive"`
	Body        []KeyValue `json:"body,omitempty" yaml:"body" validate:"dive"`
}

// Value implements driver.Valuer.
func (u Upstream) Value() (driver.Value, error) {
	return json.Marshal(u)
}

// Scan implements sql.Scanner.
func (u *Upstream) Scan(src interface{}) error {
	return scanJSON(src, u)
}

// Downstream describes how consumers reach the route through the gateway.
//
// Request is a free-form description of the expected request; it usually
// embeds a markdown parameter table which the request validator plugin
// parses on a best-effort basis.
type Downstream struct {
	Path     string `json:"path" yaml:"path" validate:"required,gateway_path"`
	Method   string `json:"method" yaml:"method" validate:"required,http_method"`
	URL      string `json:"url,omitempty" yaml:"url"`
	Request  string `json:"request,omitempty" yaml:"request"`
	Response string `json:"response,omitempty" yaml:"response"`
}

// Value implements driver.Valuer.
func (d Downstream) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *Downstream) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// Route is the canonical route definition of a marketplace API.
//
// Maps to the 'api_routes' table in PostgreSQL.
// GatewayServiceID and GatewayRouteID are only set after the gateway
// resources exist; the row is always written after the gateway calls.
type Route struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Slug         string `json:"slug" db:"slug"`
	Environment  string `json:"environment" db:"environment"`
	CollectionID string `json:"collection_id,omitempty" db:"collection_id"`

	Enabled                 bool          `json:"enabled" db:"enabled"`
	IntrospectAuthorization bool          `json:"introspect_authorization" db:"introspect_authorization"`
	Tiers                   pq.Int64Array `json:"tiers" db:"tiers"`

	Upstream   Upstream   `json:"upstream" db:"upstream"`
	Downstream Downstream `json:"downstream" db:"downstream"`

	GatewayServiceID string `json:"gateway_service_id,omitempty" db:"gateway_service_id"`
	GatewayRouteID   string `json:"gateway_route_id,omitempty" db:"gateway_route_id"`

	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt sql.NullTime `json:"-" db:"deleted_at"`
}

// Collection groups routes.
//
// Maps to the 'collections' table in PostgreSQL.
type Collection struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Company is a marketplace customer. Each company maps to one gateway consumer.
//
// Maps to the 'companies' table in PostgreSQL.
type Company struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Tier      int       `json:"tier" db:"tier"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ImportStatus is the lifecycle state of an imported spec.
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportPartial    ImportStatus = "partial"
	ImportFailed     ImportStatus = "failed"
)

// ImportError records one endpoint that could not be turned into a route.
//
// Endpoint is the "METHOD path" key, which several Postman items may share;
// Name tells them apart on retry.
type ImportError struct {
	Endpoint string `json:"endpoint"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error"`
}

// ImportErrors is stored as a JSONB array.
type ImportErrors []ImportError

// Value implements driver.Valuer.
func (e ImportErrors) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *ImportErrors) Scan(src interface{}) error {
	return scanJSON(src, e)
}

// JSONMap is a free-form JSONB object.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// ImportedSpec records one import of an externally authored API spec.
//
// Maps to the 'imported_specs' table in PostgreSQL.
type ImportedSpec struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Format       string `json:"format" db:"format"`
	Version      string `json:"version" db:"version"`
	OriginalSpec string `json:"-" db:"original_spec"`

	// ParsedMetadata holds the spec metadata and the import options, so a
	// retry can reproduce the same transformation.
	ParsedMetadata JSONMap `json:"parsed_metadata" db:"parsed_metadata"`

	Status        ImportStatus `json:"status" db:"status"`
	ImportedCount int          `json:"imported_count" db:"imported_count"`
	FailedCount   int          `json:"failed_count" db:"failed_count"`
	ErrorLog      ImportErrors `json:"error_log" db:"error_log"`

	CollectionID string    `json:"collection_id" db:"collection_id"`
	Environment  string    `json:"environment" db:"environment"`
	ImportedBy   string    `json:"imported_by" db:"imported_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Setting is one environment-scoped key/value pair.
//
// Maps to the 'settings' table in PostgreSQL.
type Setting struct {
	Environment string    `json:"environment" db:"environment"`
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
