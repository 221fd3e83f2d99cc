// Package apispec decodes externally authored API specifications and turns
// them into a format-neutral list of endpoints.
//
// Supported formats are OpenAPI 3.x, Swagger 2.0 and Postman collections
// v2.x. A Registry picks the parser for a document by asking each parser,
// in a fixed order, whether it recognizes the document; the first one that
// does wins.
package apispec

// Format identifies a specification format.
type Format string

const (
	FormatOpenAPI3 Format = "openapi3"
	FormatSwagger2 Format = "swagger2"
	FormatPostman2 Format = "postman2"
)

// Document is a decoded specification. Values are JSON value types only:
// map[string]interface{}, []interface{}, string, float64, bool and nil.
type Document map[string]interface{}

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InBody   = "body"
)

// Parameter is one input of an endpoint.
type Parameter struct {
	Name     string                 `json:"name"`
	In       string                 `json:"in"`
	Required bool                   `json:"required"`
	Type     string                 `json:"type"`
	Schema   map[string]interface{} `json:"schema,omitempty"`
}

// Default returns the schema default of the parameter.
func (p Parameter) Default() (interface{}, bool) {
	if p.Schema == nil {
		return nil, false
	}
	v, ok := p.Schema["default"]
	return v, ok && v != nil
}

// RequestBody is the payload of an endpoint.
type RequestBody struct {
	ContentType string                 `json:"content_type,omitempty"`
	Required    bool                   `json:"required"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// Response is one documented response of an endpoint.
type Response struct {
	Status      string                 `json:"status"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// Endpoint is one operation of a parsed specification. Path placeholders
// always use the {name} form.
type Endpoint struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Path        string       `json:"path"`
	Method      string       `json:"method"`
	Parameters  []Parameter  `json:"parameters"`
	RequestBody *RequestBody `json:"request_body,omitempty"`
	Responses   []Response   `json:"responses"`
}

// Key identifies an endpoint within one specification, e.g. "GET /users/{id}".
func (e Endpoint) Key() string {
	return e.Method + " " + e.Path
}

// Metadata describes the specification as a whole.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
}

// ParseResult is the output of a successful parse.
type ParseResult struct {
	Metadata  Metadata
	Endpoints []Endpoint
}

// SpecInfo identifies the format and format version of a document.
type SpecInfo struct {
	Format  Format `json:"format"`
	Version string `json:"version"`
}

// ValidationResult lists structural problems of a document.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Parser handles one specification format.
type Parser interface {
	Format() Format

	// CanParse is a cheap structural check on top-level markers.
	CanParse(doc Document) bool

	// Validate checks required-field presence only. A document without
	// any paths is valid.
	Validate(doc Document) ValidationResult

	// Parse never fails on a document that passed Validate. It does not
	// modify doc.
	Parse(doc Document) (*ParseResult, error)

	SpecInfo(doc Document) SpecInfo
}

var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}
