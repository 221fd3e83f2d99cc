package apispec

import (
	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

// Registry selects a parser for a document.
//
// Parsers are asked in registration order and the first whose CanParse
// returns true is used. Documents that more than one parser claims are not
// supported beyond that order.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns a registry of the supported formats in priority
// order: OpenAPI 3, Swagger 2, Postman 2.
func NewRegistry() *Registry {
	return &Registry{parsers: []Parser{
		OpenAPI3{},
		Swagger2{},
		Postman2{},
	}}
}

// Formats lists the supported formats in priority order.
func (r *Registry) Formats() []Format {
	out := make([]Format, len(r.parsers))
	for i, p := range r.parsers {
		out[i] = p.Format()
	}
	return out
}

// Detect returns the first parser that recognizes doc.
func (r *Registry) Detect(doc Document) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(doc) {
			return p, nil
		}
	}
	return nil, apperr.BadRequest("unsupported specification format").WithDetails(map[string]interface{}{
		"supported_formats": r.Formats(),
	})
}

// Get returns the parser of format f.
func (r *Registry) Get(f Format) (Parser, bool) {
	for _, p := range r.parsers {
		if p.Format() == f {
			return p, true
		}
	}
	return nil, false
}
