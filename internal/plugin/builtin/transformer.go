package builtin

import (
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
)

var transformerSections = []string{"headers", "querystring", "body"}

// Transformer injects the route's literal upstream headers, query
// parameters and body fields. Entries are "key:value" strings. Upstream
// paths with parameters are rewritten through replace.uri.
type Transformer struct{}

// Name implements plugin.Builder.
func (Transformer) Name() string { return NameTransformer }

// Build implements plugin.Builder.
func (Transformer) Build(in plugin.Input) (plugin.Desired, error) {
	up := in.Route.Upstream
	_, uri, err := SplitUpstream(up.URL)
	if err != nil {
		return plugin.Desired{}, err
	}

	var replaceURI interface{}
	if uri != "" {
		replaceURI = uri
	}

	return plugin.Desired{
		Name: NameTransformer,
		Config: map[string]interface{}{
			"add": map[string]interface{}{
				"headers":     pairs(up.Headers),
				"querystring": pairs(up.Querystring),
				"body":        pairs(up.Body),
			},
			"replace": map[string]interface{}{
				"uri": replaceURI,
			},
		},
		Enabled: true,
	}, nil
}

// Merge appends desired add entries to the ones already on the gateway.
// Exact duplicates are skipped so repeated syncs do not grow the lists.
// replace.uri always takes the desired value; other existing keys are kept.
func (Transformer) Merge(existing, desired map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(existing)+2)
	for k, v := range existing {
		out[k] = v
	}

	oldReplace, _ := existing["replace"].(map[string]interface{})
	newReplace, _ := desired["replace"].(map[string]interface{})
	replace := make(map[string]interface{}, len(oldReplace)+1)
	for k, v := range oldReplace {
		replace[k] = v
	}
	replace["uri"] = newReplace["uri"]
	out["replace"] = replace

	oldAdd, _ := existing["add"].(map[string]interface{})
	newAdd, _ := desired["add"].(map[string]interface{})

	add := make(map[string]interface{}, len(oldAdd)+len(transformerSections))
	for k, v := range oldAdd {
		add[k] = v
	}
	for _, section := range transformerSections {
		merged := toStrings(oldAdd[section])
		seen := make(map[string]bool, len(merged))
		for _, entry := range merged {
			seen[entry] = true
		}
		for _, entry := range toStrings(newAdd[section]) {
			if !seen[entry] {
				seen[entry] = true
				merged = append(merged, entry)
			}
		}
		add[section] = merged
	}
	out["add"] = add
	return out
}

func pairs(kvs []database.KeyValue) []string {
	out := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, kv.Key+":"+kv.Value)
	}
	return out
}

// toStrings accepts both decoded JSON arrays and string slices.
func toStrings(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
