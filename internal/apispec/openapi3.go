package apispec

import (
	"sort"
	"strings"
)

// OpenAPI3 parses OpenAPI 3.x documents.
type OpenAPI3 struct{}

// Format implements Parser.
func (OpenAPI3) Format() Format { return FormatOpenAPI3 }

// CanParse implements Parser.
func (OpenAPI3) CanParse(doc Document) bool {
	return strings.HasPrefix(scalarString(doc["openapi"]), "3.")
}

// Validate implements Parser.
func (OpenAPI3) Validate(doc Document) ValidationResult {
	return validateAgainst(openAPI3Validator, doc)
}

// SpecInfo implements Parser.
func (OpenAPI3) SpecInfo(doc Document) SpecInfo {
	return SpecInfo{Format: FormatOpenAPI3, Version: scalarString(doc["openapi"])}
}

// Parse implements Parser.
func (OpenAPI3) Parse(doc Document) (*ParseResult, error) {
	r := resolver{root: doc}
	info := obj(doc, "info")

	result := &ParseResult{
		Metadata: Metadata{
			Title:       str(info, "title"),
			Description: str(info, "description"),
			Version:     scalarString(info["version"]),
			BaseURL:     openAPIServerURL(arr(doc, "servers")),
		},
		Endpoints: []Endpoint{},
	}

	paths := obj(doc, "paths")
	for _, path := range sortedKeys(paths) {
		item := r.object(paths[path])
		if item == nil {
			continue
		}
		shared := openAPIParameters(r, arr(item, "parameters"))

		for _, method := range methodOrder {
			op := r.object(item[method])
			if op == nil {
				continue
			}
			upper := strings.ToUpper(method)

			ep := Endpoint{
				Name:        endpointName(str(op, "summary"), str(op, "operationId"), upper, path),
				Description: str(op, "description"),
				Path:        path,
				Method:      upper,
				Parameters:  mergeParameters(shared, openAPIParameters(r, arr(op, "parameters"))),
				Responses:   openAPIResponses(r, obj(op, "responses")),
			}

			if body := r.object(op["requestBody"]); body != nil {
				ct, media := pickContent(obj(body, "content"))
				ep.RequestBody = &RequestBody{
					ContentType: ct,
					Required:    body["required"] == true,
					Schema:      r.schema(media["schema"]),
				}
				ep.Parameters = append(ep.Parameters, bodyParameters(ep.RequestBody.Schema)...)
			}

			result.Endpoints = append(result.Endpoints, ep)
		}
	}
	return result, nil
}

// openAPIServerURL returns the first server URL with its variables
// replaced by their defaults.
func openAPIServerURL(servers []interface{}) string {
	for _, s := range servers {
		server, _ := s.(map[string]interface{})
		u := str(server, "url")
		if u == "" {
			continue
		}
		vars := obj(server, "variables")
		for _, name := range sortedKeys(vars) {
			def := scalarString(obj(vars, name)["default"])
			u = strings.ReplaceAll(u, "{"+name+"}", def)
		}
		return u
	}
	return ""
}

func openAPIParameters(r resolver, list []interface{}) []Parameter {
	params := make([]Parameter, 0, len(list))
	for _, raw := range list {
		p := r.object(raw)
		name, in := str(p, "name"), str(p, "in")
		if name == "" || in == "" || in == "cookie" {
			continue
		}
		schema := r.schema(p["schema"])
		if schema == nil {
			schema = map[string]interface{}{}
		}
		params = append(params, Parameter{
			Name:     name,
			In:       in,
			Required: p["required"] == true || in == InPath,
			Type:     schemaType(schema),
			Schema:   schema,
		})
	}
	return params
}

func openAPIResponses(r resolver, responses map[string]interface{}) []Response {
	out := make([]Response, 0, len(responses))
	for _, status := range sortedKeys(responses) {
		resp := r.object(responses[status])
		_, media := pickContent(obj(resp, "content"))
		out = append(out, Response{
			Status:      status,
			Description: str(resp, "description"),
			Schema:      r.schema(media["schema"]),
		})
	}
	return out
}

// pickContent prefers JSON media types, then the first in name order.
func pickContent(content map[string]interface{}) (string, map[string]interface{}) {
	if len(content) == 0 {
		return "", nil
	}
	keys := sortedKeys(content)
	sort.SliceStable(keys, func(i, j int) bool {
		return isJSON(keys[i]) && !isJSON(keys[j])
	})
	media, _ := content[keys[0]].(map[string]interface{})
	return keys[0], media
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "json")
}
