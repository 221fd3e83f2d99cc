package apispec

import (
	"strings"
)

// Swagger2 parses Swagger 2.0 documents.
type Swagger2 struct{}

// Format implements Parser.
func (Swagger2) Format() Format { return FormatSwagger2 }

// CanParse implements Parser.
func (Swagger2) CanParse(doc Document) bool {
	return scalarString(doc["swagger"]) == "2.0"
}

// Validate implements Parser.
func (Swagger2) Validate(doc Document) ValidationResult {
	return validateAgainst(swagger2Validator, doc)
}

// SpecInfo implements Parser.
func (Swagger2) SpecInfo(doc Document) SpecInfo {
	return SpecInfo{Format: FormatSwagger2, Version: scalarString(doc["swagger"])}
}

// Parse implements Parser.
func (Swagger2) Parse(doc Document) (*ParseResult, error) {
	r := resolver{root: doc}
	info := obj(doc, "info")

	result := &ParseResult{
		Metadata: Metadata{
			Title:       str(info, "title"),
			Description: str(info, "description"),
			Version:     scalarString(info["version"]),
			BaseURL:     swaggerBaseURL(doc),
		},
		Endpoints: []Endpoint{},
	}

	paths := obj(doc, "paths")
	for _, path := range sortedKeys(paths) {
		item := r.object(paths[path])
		if item == nil {
			continue
		}
		sharedParams, sharedBody := swaggerParameters(r, arr(item, "parameters"))

		for _, method := range methodOrder {
			op := r.object(item[method])
			if op == nil {
				continue
			}
			upper := strings.ToUpper(method)
			params, body := swaggerParameters(r, arr(op, "parameters"))
			if body == nil {
				body = sharedBody
			}

			ep := Endpoint{
				Name:        endpointName(str(op, "summary"), str(op, "operationId"), upper, path),
				Description: str(op, "description"),
				Path:        path,
				Method:      upper,
				Parameters:  mergeParameters(sharedParams, params),
				RequestBody: body,
				Responses:   swaggerResponses(r, obj(op, "responses")),
			}
			if body != nil {
				ep.Parameters = append(ep.Parameters, bodyParameters(body.Schema)...)
			}

			result.Endpoints = append(result.Endpoints, ep)
		}
	}
	return result, nil
}

func swaggerBaseURL(doc Document) string {
	host := str(doc, "host")
	if host == "" {
		return ""
	}
	scheme := "https"
	if schemes := arr(doc, "schemes"); len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	return scheme + "://" + host + str(doc, "basePath")
}

// schemaKeywords are the parameter fields that describe a value in Swagger
// 2.0; they move into the parameter schema so all formats look alike.
var schemaKeywords = []string{
	"type", "format", "items", "enum", "default", "minimum", "maximum",
	"minLength", "maxLength", "pattern", "collectionFormat",
}

// swaggerParameters splits a parameter list into non-body parameters and
// the request body. formData fields become properties of a form body.
func swaggerParameters(r resolver, list []interface{}) ([]Parameter, *RequestBody) {
	var (
		params  []Parameter
		body    *RequestBody
		form    map[string]interface{}
		formReq []interface{}
	)

	for _, raw := range list {
		p := r.object(raw)
		name, in := str(p, "name"), str(p, "in")
		if name == "" || in == "" {
			continue
		}

		switch in {
		case InBody:
			body = &RequestBody{
				ContentType: "application/json",
				Required:    p["required"] == true,
				Schema:      r.schema(p["schema"]),
			}
		case "formData":
			if form == nil {
				form = map[string]interface{}{}
			}
			form[name] = swaggerSchema(r, p)
			if p["required"] == true {
				formReq = append(formReq, name)
			}
		default:
			schema := swaggerSchema(r, p)
			params = append(params, Parameter{
				Name:     name,
				In:       in,
				Required: p["required"] == true || in == InPath,
				Type:     schemaType(schema),
				Schema:   schema,
			})
		}
	}

	if body == nil && form != nil {
		schema := map[string]interface{}{"type": "object", "properties": form}
		if len(formReq) > 0 {
			schema["required"] = formReq
		}
		body = &RequestBody{
			ContentType: "application/x-www-form-urlencoded",
			Required:    len(formReq) > 0,
			Schema:      schema,
		}
	}
	return params, body
}

func swaggerSchema(r resolver, p map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{}
	for _, k := range schemaKeywords {
		if v, ok := p[k]; ok {
			schema[k] = r.deep(v)
		}
	}
	return schema
}

func swaggerResponses(r resolver, responses map[string]interface{}) []Response {
	out := make([]Response, 0, len(responses))
	for _, status := range sortedKeys(responses) {
		resp := r.object(responses[status])
		out = append(out, Response{
			Status:      status,
			Description: str(resp, "description"),
			Schema:      r.schema(resp["schema"]),
		})
	}
	return out
}
