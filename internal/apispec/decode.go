package apispec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

// Decode parses raw as JSON, falling back to YAML. YAML input is passed
// through JSON so both paths yield the same value types. The top level
// must be an object.
func Decode(raw []byte) (Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, apperr.BadRequest("specification is empty")
	}

	var v interface{}
	jsonErr := json.Unmarshal(raw, &v)
	if jsonErr != nil {
		var y interface{}
		if err := yaml.Unmarshal(raw, &y); err != nil {
			return nil, apperr.BadRequest("specification is neither valid JSON nor YAML").
				WithDetails([]string{jsonErr.Error(), err.Error()})
		}

		data, err := json.Marshal(stringKeys(y))
		if err != nil {
			return nil, apperr.BadRequest("specification cannot be represented as JSON").Wrap(err)
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, apperr.BadRequest("specification cannot be represented as JSON").Wrap(err)
		}
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, apperr.BadRequest("specification must be an object, got %s", kindOf(v))
	}
	return Document(obj), nil
}

// stringKeys converts YAML maps with non-string keys, such as numeric
// response codes, into string-keyed maps.
func stringKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = stringKeys(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = stringKeys(val)
		}
		return out
	default:
		return v
	}
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
