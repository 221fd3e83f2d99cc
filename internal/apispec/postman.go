package apispec

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Postman2 parses Postman collections v2.0 and v2.1. Folders are
// flattened; ":name" path segments become "{name}" and "{{var}}"
// references are resolved from the collection variables.
type Postman2 struct{}

var postmanSchemaVersion = regexp.MustCompile(`v(\d+\.\d+\.\d+)`)

// Format implements Parser.
func (Postman2) Format() Format { return FormatPostman2 }

// CanParse implements Parser.
func (Postman2) CanParse(doc Document) bool {
	schema := strings.ToLower(str(obj(doc, "info"), "schema"))
	return strings.Contains(schema, "postman") || strings.Contains(schema, "collection")
}

// Validate implements Parser.
func (Postman2) Validate(doc Document) ValidationResult {
	return validateAgainst(postman2Validator, doc)
}

// SpecInfo implements Parser. The version comes from the schema URL, e.g.
// .../collection/v2.1.0/collection.json.
func (Postman2) SpecInfo(doc Document) SpecInfo {
	info := SpecInfo{Format: FormatPostman2}
	if m := postmanSchemaVersion.FindStringSubmatch(str(obj(doc, "info"), "schema")); m != nil {
		info.Version = m[1]
	}
	return info
}

// Parse implements Parser.
func (Postman2) Parse(doc Document) (*ParseResult, error) {
	info := obj(doc, "info")
	vars := postmanVariables(arr(doc, "variable"))

	p := &postmanWalker{vars: vars}
	for _, key := range []string{"baseUrl", "base_url", "baseURL"} {
		if v := vars[key]; v != "" {
			p.baseURL = strings.TrimRight(v, "/")
			break
		}
	}
	p.walk(arr(doc, "item"))

	return &ParseResult{
		Metadata: Metadata{
			Title:       str(info, "name"),
			Description: postmanText(info["description"]),
			Version:     scalarString(info["version"]),
			BaseURL:     p.baseURL,
		},
		Endpoints: p.endpoints,
	}, nil
}

type postmanWalker struct {
	vars      map[string]string
	baseURL   string
	endpoints []Endpoint
}

func (p *postmanWalker) walk(items []interface{}) {
	if p.endpoints == nil {
		p.endpoints = []Endpoint{}
	}
	for _, raw := range items {
		item, _ := raw.(map[string]interface{})
		if item == nil {
			continue
		}
		if children, ok := item["item"].([]interface{}); ok {
			p.walk(children)
			continue
		}
		if ep, ok := p.endpoint(item); ok {
			p.endpoints = append(p.endpoints, ep)
		}
	}
}

func (p *postmanWalker) endpoint(item map[string]interface{}) (Endpoint, bool) {
	var req map[string]interface{}
	switch r := item["request"].(type) {
	case string:
		req = map[string]interface{}{"url": r}
	case map[string]interface{}:
		req = r
	default:
		return Endpoint{}, false
	}

	method := strings.ToUpper(str(req, "method"))
	if method == "" {
		method = "GET"
	}

	path, query, origin := p.parseURL(req["url"])
	if p.baseURL == "" && origin != "" {
		p.baseURL = origin
	}

	ep := Endpoint{
		Name:        strings.TrimSpace(str(item, "name")),
		Description: postmanText(req["description"]),
		Path:        path,
		Method:      method,
		Parameters:  []Parameter{},
		Responses:   postmanResponses(arr(item, "response")),
	}
	if ep.Name == "" {
		ep.Name = method + " " + path
	}

	for _, name := range pathVariables(path) {
		ep.Parameters = append(ep.Parameters, Parameter{
			Name: name, In: InPath, Required: true, Type: "string",
			Schema: map[string]interface{}{"type": "string"},
		})
	}
	for _, kv := range query {
		ep.Parameters = append(ep.Parameters, literalParameter(kv[0], InQuery, p.resolve(kv[1])))
	}
	for _, h := range arr(req, "header") {
		header, _ := h.(map[string]interface{})
		if header == nil || header["disabled"] == true || str(header, "key") == "" {
			continue
		}
		ep.Parameters = append(ep.Parameters, literalParameter(str(header, "key"), InHeader, p.resolve(str(header, "value"))))
	}

	if body := p.body(obj(req, "body")); body != nil {
		ep.RequestBody = body
		ep.Parameters = append(ep.Parameters, bodyParameters(body.Schema)...)
	}
	return ep, true
}

// parseURL returns the {name}-style path, the enabled query pairs and the
// scheme://host origin when the URL names a literal host.
func (p *postmanWalker) parseURL(v interface{}) (string, [][2]string, string) {
	var (
		raw      string
		segments []string
		query    [][2]string
		origin   string
	)

	switch u := v.(type) {
	case string:
		raw = u
	case map[string]interface{}:
		raw = str(u, "raw")
		switch path := u["path"].(type) {
		case []interface{}:
			for _, seg := range path {
				switch s := seg.(type) {
				case string:
					segments = append(segments, s)
				case map[string]interface{}:
					segments = append(segments, str(s, "value"))
				}
			}
		case string:
			segments = strings.Split(strings.Trim(path, "/"), "/")
		}
		if qs, ok := u["query"].([]interface{}); ok {
			for _, q := range qs {
				entry, _ := q.(map[string]interface{})
				if entry == nil || entry["disabled"] == true || str(entry, "key") == "" {
					continue
				}
				query = append(query, [2]string{str(entry, "key"), str(entry, "value")})
			}
		}
		if host := postmanHost(u["host"]); host != "" && !strings.Contains(host, "{{") {
			protocol := str(u, "protocol")
			if protocol == "" {
				protocol = "https"
			}
			origin = protocol + "://" + host
			if port := str(u, "port"); port != "" {
				origin += ":" + port
			}
		}
	}

	rawPath, rawQuery, rawOrigin := splitRawURL(raw)
	if segments == nil {
		segments = strings.Split(strings.Trim(rawPath, "/"), "/")
	}
	if query == nil {
		query = rawQuery
	}
	if origin == "" && !strings.Contains(rawOrigin, "{{") {
		origin = rawOrigin
	}

	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if m := postmanPathVar.FindStringSubmatch(seg); m != nil {
			seg = "{" + m[1] + "}" + m[2]
		}
		out = append(out, seg)
	}
	return "/" + strings.Join(out, "/"), query, origin
}

// splitRawURL splits "{{baseUrl}}/users/:id?x=1" or
// "https://host/users?x=1" into path, query pairs and origin.
func splitRawURL(raw string) (string, [][2]string, string) {
	var query [][2]string
	if i := strings.Index(raw, "?"); i >= 0 {
		for _, pair := range strings.Split(raw[i+1:], "&") {
			if pair == "" {
				continue
			}
			kv := strings.SplitN(pair, "=", 2)
			value := ""
			if len(kv) == 2 {
				value = kv[1]
			}
			query = append(query, [2]string{kv[0], value})
		}
		raw = raw[:i]
	}

	origin := ""
	switch {
	case strings.HasPrefix(raw, "{{"):
		if j := strings.Index(raw, "}}"); j >= 0 {
			origin = raw[:j+2]
			raw = raw[j+2:]
		}
	case strings.Contains(raw, "://"):
		i := strings.Index(raw, "://") + 3
		j := strings.Index(raw[i:], "/")
		if j < 0 {
			return "/", query, raw
		}
		origin = raw[:i+j]
		raw = raw[i+j:]
	}
	return raw, query, origin
}

func postmanHost(v interface{}) string {
	switch h := v.(type) {
	case string:
		return h
	case []interface{}:
		parts := make([]string, 0, len(h))
		for _, p := range h {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ".")
	default:
		return ""
	}
}

var postmanVarRef = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// postmanPathVar matches ":name" at the start of a segment; the rest of the
// segment (e.g. ".json") stays literal.
var postmanPathVar = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)(.*)$`)

// resolve replaces {{var}} references with collection variables. Unknown
// references are kept.
func (p *postmanWalker) resolve(s string) string {
	return postmanVarRef.ReplaceAllStringFunc(s, func(m string) string {
		name := postmanVarRef.FindStringSubmatch(m)[1]
		if v, ok := p.vars[name]; ok {
			return v
		}
		return m
	})
}

func (p *postmanWalker) body(body map[string]interface{}) *RequestBody {
	if body == nil || body["disabled"] == true {
		return nil
	}

	switch str(body, "mode") {
	case "raw":
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(p.resolve(str(body, "raw"))), &payload); err != nil {
			return nil
		}
		return &RequestBody{
			ContentType: "application/json",
			Schema:      inferSchema(payload),
		}
	case "urlencoded", "formdata":
		props := map[string]interface{}{}
		for _, f := range arr(body, str(body, "mode")) {
			field, _ := f.(map[string]interface{})
			if field == nil || field["disabled"] == true || str(field, "key") == "" {
				continue
			}
			props[str(field, "key")] = map[string]interface{}{
				"type":    "string",
				"default": p.resolve(str(field, "value")),
			}
		}
		if len(props) == 0 {
			return nil
		}
		ct := "application/x-www-form-urlencoded"
		if str(body, "mode") == "formdata" {
			ct = "multipart/form-data"
		}
		return &RequestBody{
			ContentType: ct,
			Schema:      map[string]interface{}{"type": "object", "properties": props},
		}
	default:
		return nil
	}
}

// inferSchema describes an example object, keeping its values as defaults.
func inferSchema(example map[string]interface{}) map[string]interface{} {
	props := make(map[string]interface{}, len(example))
	for k, v := range example {
		props[k] = map[string]interface{}{
			"type":    inferType(v),
			"default": v,
		}
	}
	return map[string]interface{}{"type": "object", "properties": props}
}

func inferType(v interface{}) string {
	switch t := v.(type) {
	case bool:
		return "boolean"
	case float64:
		if t == math.Trunc(t) {
			return "integer"
		}
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "string"
	}
}

// literalParameter describes a query or header entry. Empty values and
// values still holding unresolved {{var}} references carry no default.
func literalParameter(name, in, value string) Parameter {
	schema := map[string]interface{}{"type": "string"}
	if value != "" && !postmanVarRef.MatchString(value) {
		schema["default"] = value
	}
	return Parameter{
		Name:   name,
		In:     in,
		Type:   "string",
		Schema: schema,
	}
}

func postmanVariables(list []interface{}) map[string]string {
	vars := make(map[string]string, len(list))
	for _, raw := range list {
		v, _ := raw.(map[string]interface{})
		if v == nil || v["disabled"] == true {
			continue
		}
		key := str(v, "key")
		if key == "" {
			continue
		}
		switch val := v["value"].(type) {
		case string:
			vars[key] = val
		case float64:
			vars[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			vars[key] = strconv.FormatBool(val)
		}
	}
	return vars
}

func postmanResponses(list []interface{}) []Response {
	out := make([]Response, 0, len(list))
	for _, raw := range list {
		r, _ := raw.(map[string]interface{})
		if r == nil {
			continue
		}
		status := ""
		if code, ok := r["code"].(float64); ok {
			status = strconv.Itoa(int(code))
		}
		desc := str(r, "name")
		if desc == "" {
			desc = str(r, "status")
		}
		resp := Response{Status: status, Description: desc}
		var example map[string]interface{}
		if json.Unmarshal([]byte(str(r, "body")), &example) == nil {
			resp.Schema = inferSchema(example)
		}
		out = append(out, resp)
	}
	return out
}

// postmanText reads a description that is either a string or
// {"content": "..."}.
func postmanText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		return str(t, "content")
	default:
		return ""
	}
}

var pathVariable = regexp.MustCompile(`\{([^/{}]+)\}`)

func pathVariables(path string) []string {
	var names []string
	for _, m := range pathVariable.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}
