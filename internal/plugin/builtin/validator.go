package builtin

import (
	"encoding/json"
	"strings"

	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
)

// RequestValidator derives request validation from the route's downstream
// request description. The description is free-form; only a markdown table
// with at least Name and In columns is understood. Anything else yields an
// empty validator, which accepts every request.
type RequestValidator struct{}

// Name implements plugin.Builder.
func (RequestValidator) Name() string { return NameRequestValidator }

// Build implements plugin.Builder.
func (RequestValidator) Build(in plugin.Input) (plugin.Desired, error) {
	params := ParseParameterTable(in.Route.Downstream.Request)

	paramSchema := make([]interface{}, 0, len(params))
	properties := map[string]interface{}{}
	var required []string

	for _, p := range params {
		schema := map[string]interface{}{"type": p.Type}
		if p.In == "body" {
			properties[p.Name] = schema
			if p.Required {
				required = append(required, p.Name)
			}
			continue
		}

		encoded, err := json.Marshal(schema)
		if err != nil {
			return plugin.Desired{}, err
		}
		style := "simple"
		if p.In == "query" {
			style = "form"
		}
		paramSchema = append(paramSchema, map[string]interface{}{
			"name":     p.Name,
			"in":       p.In,
			"required": p.Required || p.In == "path",
			"schema":   string(encoded),
			"style":    style,
			"explode":  false,
		})
	}

	config := map[string]interface{}{
		"version":          "draft4",
		"verbose_response": true,
		"parameter_schema": paramSchema,
	}
	if len(properties) > 0 {
		body := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			body["required"] = required
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return plugin.Desired{}, err
		}
		config["body_schema"] = string(encoded)
	}

	return plugin.Desired{
		Name:    NameRequestValidator,
		Config:  config,
		Enabled: true,
	}, nil
}

// TableParameter is one row of a parameter table.
type TableParameter struct {
	Name     string
	In       string
	Type     string
	Required bool
}

var validLocations = map[string]bool{"path": true, "query": true, "header": true, "body": true}

var schemaTypes = map[string]bool{
	"string": true, "integer": true, "number": true,
	"boolean": true, "array": true, "object": true,
}

// ParseParameterTable extracts parameters from the first markdown table in
// text. Rows with an unknown location are skipped.
func ParseParameterTable(text string) []TableParameter {
	var (
		columns map[string]int
		params  []TableParameter
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			if columns != nil {
				break
			}
			continue
		}

		cells := splitRow(line)
		if columns == nil {
			columns = headerColumns(cells)
			if columns == nil {
				return nil
			}
			continue
		}
		if isSeparator(cells) {
			continue
		}

		p := TableParameter{
			Name: cell(cells, columns, "name"),
			In:   strings.ToLower(cell(cells, columns, "in")),
			Type: strings.ToLower(cell(cells, columns, "type")),
		}
		if p.Name == "" || !validLocations[p.In] {
			continue
		}
		if !schemaTypes[p.Type] {
			p.Type = "string"
		}
		switch strings.ToLower(cell(cells, columns, "required")) {
		case "yes", "y", "true", "required":
			p.Required = true
		}
		params = append(params, p)
	}
	return params
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(parts[i]), "`")
	}
	return parts
}

var headerAliases = map[string]string{
	"name":      "name",
	"parameter": "name",
	"in":        "in",
	"location":  "in",
	"type":      "type",
	"required":  "required",
}

func headerColumns(cells []string) map[string]int {
	columns := make(map[string]int)
	for i, c := range cells {
		if key, ok := headerAliases[strings.ToLower(c)]; ok {
			if _, dup := columns[key]; !dup {
				columns[key] = i
			}
		}
	}
	if _, ok := columns["name"]; !ok {
		return nil
	}
	if _, ok := columns["in"]; !ok {
		return nil
	}
	return columns
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func cell(cells []string, columns map[string]int, key string) string {
	i, ok := columns[key]
	if !ok || i >= len(cells) {
		return ""
	}
	return cells[i]
}
