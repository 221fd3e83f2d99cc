// Package normalize turns parsed specification endpoints into canonical
// route drafts. Everything here is a pure function of its inputs.
package normalize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/saidutt46/switchboard-marketplace/internal/apispec"
	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
)

// Options are the import choices applied to every endpoint. They are stored
// with the import so a retry reproduces the same routes.
type Options struct {
	Environment             string  `json:"environment" validate:"required,oneof=sandbox production"`
	BaseURL                 string  `json:"base_url,omitempty" validate:"omitempty,url"`
	CollectionID            string  `json:"collection_id,omitempty"`
	Tiers                   []int64 `json:"tiers,omitempty" validate:"dive,min=1"`
	Enabled                 bool    `json:"enabled"`
	IntrospectAuthorization bool    `json:"introspect_authorization"`
}

var placeholder = regexp.MustCompile(`\{([^/{}]+)\}`)

// UpstreamPath rewrites {name} placeholders to :name.
func UpstreamPath(path string) string {
	return placeholder.ReplaceAllString(path, ":$1")
}

// DownstreamPath turns a templated path into a gateway regex path:
// /users/{id} becomes ~/users/(?<id>[^/]+). Literal parts are escaped.
func DownstreamPath(path string) string {
	var b strings.Builder
	b.WriteString("~")
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(path, -1) {
		b.WriteString(regexp.QuoteMeta(path[last:m[0]]))
		b.WriteString("(?<")
		b.WriteString(path[m[2]:m[3]])
		b.WriteString(">[^/]+)")
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(path[last:]))
	return b.String()
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkPlaceholders rejects path parameters the gateway cannot capture by
// name: the placeholder must open its segment and be an identifier.
// /files/{name}.json is accepted, /files/report-{id} is not.
func checkPlaceholders(path string) error {
	for _, m := range placeholder.FindAllStringSubmatchIndex(path, -1) {
		name := path[m[2]:m[3]]
		if m[0] > 0 && path[m[0]-1] != '/' {
			return apperr.BadRequest("unsupported path parameter {%s} in %s: a parameter must start its path segment", name, path)
		}
		if !identifier.MatchString(name) {
			return apperr.BadRequest("unsupported path parameter {%s} in %s: name must be alphanumeric", name, path)
		}
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with "-".
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ResolveBaseURL picks the upstream base URL: the explicit override, then
// the URL declared by the specification. The result must be an absolute
// http(s) URL with a host.
func ResolveBaseURL(override, declared string) (string, error) {
	candidate := strings.TrimSpace(override)
	source := "override"
	if candidate == "" {
		candidate = strings.TrimSpace(declared)
		source = "specification"
	}
	if candidate == "" {
		return "", apperr.BadRequest("no upstream base URL: provide one or declare a server in the specification")
	}

	u, err := url.Parse(candidate)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.BadRequest("invalid upstream base URL %q from %s", candidate, source)
	}
	return strings.TrimRight(candidate, "/"), nil
}

// EndpointToRoute builds the canonical route draft of one endpoint. The
// draft has no id and no gateway ids.
func EndpointToRoute(meta apispec.Metadata, ep apispec.Endpoint, opts Options) (*database.Route, error) {
	base, err := ResolveBaseURL(opts.BaseURL, meta.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := checkPlaceholders(ep.Path); err != nil {
		return nil, err
	}

	// Only header and query defaults are injected. Body parameters are
	// described in the request table and never forwarded as literals.
	var headers, query []database.KeyValue
	for _, p := range ep.Parameters {
		if p.In != apispec.InHeader && p.In != apispec.InQuery {
			continue
		}
		def, ok := p.Default()
		if !ok {
			continue
		}
		kv := database.KeyValue{Key: p.Name, Value: literal(def)}
		if p.In == apispec.InHeader {
			headers = append(headers, kv)
		} else {
			query = append(query, kv)
		}
	}

	response, err := ResponseSummary(ep.Responses)
	if err != nil {
		return nil, err
	}

	return &database.Route{
		Name:                    ep.Name,
		Slug:                    Slugify(ep.Name),
		Environment:             opts.Environment,
		CollectionID:            opts.CollectionID,
		Enabled:                 opts.Enabled,
		IntrospectAuthorization: opts.IntrospectAuthorization,
		Tiers:                   pq.Int64Array(append([]int64(nil), opts.Tiers...)),
		Upstream: database.Upstream{
			URL:         base + UpstreamPath(ep.Path),
			Method:      ep.Method,
			Headers:     headers,
			Querystring: query,
		},
		Downstream: database.Downstream{
			Path:     DownstreamPath(ep.Path),
			Method:   ep.Method,
			Request:  RequestDescription(ep),
			Response: response,
		},
	}, nil
}

// RequestDescription renders the endpoint description followed by a
// markdown parameter table.
func RequestDescription(ep apispec.Endpoint) string {
	var b strings.Builder
	if d := strings.TrimSpace(ep.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	if len(ep.Parameters) == 0 {
		return strings.TrimSpace(b.String())
	}

	b.WriteString("| Name | In | Type | Required | Description |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, p := range ep.Parameters {
		required := "no"
		if p.Required {
			required = "yes"
		}
		desc, _ := p.Schema["description"].(string)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cell(p.Name), p.In, cell(p.Type), required, cell(desc))
	}
	return strings.TrimSpace(b.String())
}

type responseSummary struct {
	Status      string                 `json:"status"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// ResponseSummary renders the documented responses as indented JSON.
func ResponseSummary(responses []apispec.Response) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}
	out := make([]responseSummary, 0, len(responses))
	for _, r := range responses {
		out = append(out, responseSummary{Status: r.Status, Description: r.Description, Schema: r.Schema})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}
	return string(data), nil
}

// literal renders a schema default as the string the gateway injects.
func literal(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
