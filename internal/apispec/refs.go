package apispec

import (
	"sort"
	"strconv"
	"strings"
)

const maxRefDepth = 32

// resolver follows local JSON pointers ("#/components/schemas/User") within
// one document. Remote references are left as they are.
type resolver struct {
	root Document
}

func (r resolver) lookup(ref string) (interface{}, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(r.root)
	for _, tok := range strings.Split(ref[2:], "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// object resolves a top-level $ref chain and returns the target object.
func (r resolver) object(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	for depth := 0; m != nil && depth < maxRefDepth; depth++ {
		ref, ok := m["$ref"].(string)
		if !ok {
			return m
		}
		target, found := r.lookup(ref)
		if !found {
			return m
		}
		m, _ = target.(map[string]interface{})
	}
	return m
}

// deep returns a copy of v with every resolvable $ref inlined. Cycles are
// cut by leaving the repeated $ref in place.
func (r resolver) deep(v interface{}) interface{} {
	return r.deepWith(v, map[string]bool{}, 0)
}

func (r resolver) deepWith(v interface{}, active map[string]bool, depth int) interface{} {
	if depth > maxRefDepth {
		return v
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if ref, ok := t["$ref"].(string); ok {
			if active[ref] {
				return map[string]interface{}{"$ref": ref}
			}
			target, found := r.lookup(ref)
			if !found {
				return copyValue(t)
			}
			active[ref] = true
			out := r.deepWith(target, active, depth+1)
			delete(active, ref)
			return out
		}
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = r.deepWith(val, active, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = r.deepWith(val, active, depth+1)
		}
		return out
	default:
		return v
	}
}

// schema returns a deep-resolved schema object, or nil.
func (r resolver) schema(v interface{}) map[string]interface{} {
	m, _ := r.deep(v).(map[string]interface{})
	return m
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func obj(m map[string]interface{}, key string) map[string]interface{} {
	o, _ := m[key].(map[string]interface{})
	return o
}

func arr(m map[string]interface{}, key string) []interface{} {
	a, _ := m[key].([]interface{})
	return a
}

// scalarString renders a version-like scalar. Unquoted YAML versions such
// as 2.0 decode as numbers.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	default:
		return ""
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// schemaType returns the type of a schema, "object" for schemas that only
// declare properties, or "string".
func schemaType(schema map[string]interface{}) string {
	if t, ok := schema["type"].(string); ok && t != "" {
		return t
	}
	if _, ok := schema["properties"]; ok {
		return "object"
	}
	return "string"
}

// bodyParameters lists the top-level properties of an object schema as
// body parameters, in name order.
func bodyParameters(schema map[string]interface{}) []Parameter {
	props := obj(schema, "properties")
	if props == nil {
		return nil
	}
	required := map[string]bool{}
	for _, r := range arr(schema, "required") {
		if s, ok := r.(string); ok {
			required[s] = true
		}
	}

	params := make([]Parameter, 0, len(props))
	for _, name := range sortedKeys(props) {
		prop, _ := props[name].(map[string]interface{})
		params = append(params, Parameter{
			Name:     name,
			In:       InBody,
			Required: required[name],
			Type:     schemaType(prop),
			Schema:   prop,
		})
	}
	return params
}

// mergeParameters overlays operation parameters on path-level ones; the
// pair (name, in) identifies a parameter.
func mergeParameters(pathLevel, opLevel []Parameter) []Parameter {
	out := make([]Parameter, 0, len(pathLevel)+len(opLevel))
	index := map[string]int{}
	for _, list := range [][]Parameter{pathLevel, opLevel} {
		for _, p := range list {
			key := p.In + "\x00" + p.Name
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func endpointName(summary, operationID, method, path string) string {
	switch {
	case strings.TrimSpace(summary) != "":
		return strings.TrimSpace(summary)
	case operationID != "":
		return operationID
	default:
		return method + " " + path
	}
}
