package apispec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Structural schemas. They check the presence and shape of required
// fields only; the parsers are lenient about everything else.
const openAPI3Schema = `
type: object
required: [openapi, info, paths]
properties:
  info:
    type: object
    required: [title, version]
    properties:
      title: {type: string}
  paths:
    type: object
    additionalProperties: {type: object}
  servers:
    type: array
    items:
      type: object
      required: [url]
      properties:
        url: {type: string}
`

const swagger2Schema = `
type: object
required: [swagger, info, paths]
properties:
  info:
    type: object
    required: [title, version]
    properties:
      title: {type: string}
  host: {type: string}
  basePath: {type: string}
  schemes:
    type: array
    items: {type: string}
  paths:
    type: object
    additionalProperties: {type: object}
`

const postman2Schema = `
type: object
required: [info, item]
properties:
  info:
    type: object
    required: [name, schema]
    properties:
      name: {type: string}
      schema: {type: string}
  item:
    type: array
    items: {type: object}
  variable:
    type: array
    items:
      type: object
      required: [key]
`

var (
	openAPI3Validator = mustCompile("openapi3.json", openAPI3Schema)
	swagger2Validator = mustCompile("swagger2.json", swagger2Schema)
	postman2Validator = mustCompile("postman2.json", postman2Schema)
)

// mustCompile compiles a YAML schema through its JSON form.
func mustCompile(name, schemaYAML string) *jsonschema.Schema {
	var schemaData interface{}
	if err := yaml.Unmarshal([]byte(schemaYAML), &schemaData); err != nil {
		panic(fmt.Sprintf("parse %s: %v", name, err))
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		panic(fmt.Sprintf("marshal %s: %v", name, err))
	}

	return jsonschema.MustCompileString(name, string(jsonData))
}

// validateAgainst runs schema on doc and flattens the error tree into
// sorted "location: message" strings.
func validateAgainst(schema *jsonschema.Schema, doc Document) ValidationResult {
	err := schema.Validate(map[string]interface{}(doc))
	if err == nil {
		return ValidationResult{Valid: true}
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}

	var msgs []string
	collectLeaves(verr, &msgs)
	sort.Strings(msgs)
	return ValidationResult{Valid: false, Errors: msgs}
}

func collectLeaves(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+e.Message)
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, out)
	}
}
