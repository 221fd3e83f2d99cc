package builtin

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/lib/pq"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

func testRoute() *database.Route {
	return &database.Route{
		ID:      "r1",
		Name:    "List users",
		Enabled: true,
		Tiers:   pq.Int64Array{1, 2},
		Upstream: database.Upstream{
			URL:     "https://api.example.com/users",
			Method:  "GET",
			Headers: []database.KeyValue{{Key: "X-Version", Value: "2"}},
		},
	}
}

func TestRegistryOrder(t *testing.T) {
	want := []string{NameTermination, NameACL, NameAuthorization, NameRequestValidator, NameTransformer}
	if got := NewRegistry().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestTermination(t *testing.T) {
	tests := []struct {
		enabled bool
		want    bool
	}{
		{enabled: true, want: false},
		{enabled: false, want: true},
	}
	for _, tt := range tests {
		route := testRoute()
		route.Enabled = tt.enabled
		d, _ := Termination{}.Build(plugin.Input{Route: route})
		if d.Enabled != tt.want {
			t.Errorf("route enabled=%v: plugin enabled = %v, want %v", tt.enabled, d.Enabled, tt.want)
		}
		if d.Config["status_code"] != 503 {
			t.Errorf("unexpected status code: %v", d.Config["status_code"])
		}
	}
}

func TestACL(t *testing.T) {
	route := testRoute()
	route.Tiers = pq.Int64Array{2, 1, 2}

	d, err := ACL{}.Build(plugin.Input{Route: route})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"tier-2", "tier-1", "route-r1"}
	if got := d.Config["allow"]; !reflect.DeepEqual(got, want) {
		t.Errorf("allow = %v, want %v", got, want)
	}
	if d.Config["hide_groups_header"] != true {
		t.Error("expected hide_groups_header")
	}
}

func TestAuthorization(t *testing.T) {
	route := testRoute()

	d, err := Authorization{}.Build(plugin.Input{Route: route})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Enabled || !d.OnlyIfPresent {
		t.Errorf("expected disabled update-only plugin when introspection is off, got %+v", d)
	}

	route.IntrospectAuthorization = true
	partial := settings.NewSnapshot("sandbox", map[string]string{
		settings.KeyIntrospectionEndpoint: "https://idp/introspect",
	})
	_, err = Authorization{}.Build(plugin.Input{Route: route, Settings: partial})
	if !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request for missing settings, got %v", err)
	}

	full := settings.NewSnapshot("sandbox", map[string]string{
		settings.KeyIntrospectionEndpoint:     "https://idp/introspect",
		settings.KeyIntrospectionClientID:     "id",
		settings.KeyIntrospectionClientSecret: "secret",
	})
	d, err = Authorization{}.Build(plugin.Input{Route: route, Settings: full})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Enabled || d.Config["client_id"] != "id" || d.Config["introspection_endpoint"] != "https://idp/introspect" {
		t.Errorf("unexpected plugin: %+v", d)
	}
}

func TestTransformerMerge(t *testing.T) {
	route := testRoute()
	route.Upstream.Querystring = []database.KeyValue{{Key: "page", Value: "1"}}

	d, _ := Transformer{}.Build(plugin.Input{Route: route})

	var existing map[string]interface{}
	json.Unmarshal([]byte(`{
		"add": {"headers": ["X-Tenant:acme", "X-Version:2"], "querystring": [], "json_types": ["string"]},
		"remove": {"headers": ["X-Debug"]}
	}`), &existing)

	merged := Transformer{}.Merge(existing, d.Config)
	add := merged["add"].(map[string]interface{})

	if got, want := add["headers"], []string{"X-Tenant:acme", "X-Version:2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("headers = %v, want %v", got, want)
	}
	if got, want := add["querystring"], []string{"page:1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("querystring = %v, want %v", got, want)
	}
	if got := add["body"]; !reflect.DeepEqual(got, []string{}) {
		t.Errorf("body = %v, want empty", got)
	}
	if _, ok := add["json_types"]; !ok {
		t.Error("expected unrelated add keys to be kept")
	}
	if _, ok := merged["remove"]; !ok {
		t.Error("expected unrelated top-level keys to be kept")
	}
	if uri := merged["replace"].(map[string]interface{})["uri"]; uri != nil {
		t.Errorf("expected no uri rewrite for a static upstream path, got %v", uri)
	}

	again := Transformer{}.Merge(merged, d.Config)
	if !reflect.DeepEqual(again["add"].(map[string]interface{})["headers"], add["headers"]) {
		t.Error("expected merge to be idempotent")
	}
}

func TestParseParameterTable(t *testing.T) {
	text := "Fetch a user.\n\n" +
		"| Name | In | Type | Required | Description |\n" +
		"| --- | --- | --- | --- | --- |\n" +
		"| id | path | integer | yes | user id |\n" +
		"| `verbose` | query | boolean | no | |\n" +
		"| email | body | string | yes | |\n" +
		"| weird | cookie | string | no | |\n" +
		"| x | header | uuid | no | |\n" +
		"\nTrailing text | with a pipe"

	got := ParseParameterTable(text)
	want := []TableParameter{
		{Name: "id", In: "path", Type: "integer", Required: true},
		{Name: "verbose", In: "query", Type: "boolean"},
		{Name: "email", In: "body", Type: "string", Required: true},
		{Name: "x", In: "header", Type: "string"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseParameterTable() = %+v, want %+v", got, want)
	}
}

func TestRequestValidator(t *testing.T) {
	tests := []struct {
		name       string
		request    string
		wantParams int
		wantBody   bool
	}{
		{"free text", "Send whatever you like.", 0, false},
		{"empty", "", 0, false},
		{
			"table",
			"| Name | In | Type | Required |\n|---|---|---|---|\n| id | path | string | yes |\n| name | body | string | yes |",
			1, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := testRoute()
			route.Downstream.Request = tt.request

			d, err := RequestValidator{}.Build(plugin.Input{Route: route})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := len(d.Config["parameter_schema"].([]interface{})); got != tt.wantParams {
				t.Errorf("parameter_schema has %d entries, want %d", got, tt.wantParams)
			}
			_, hasBody := d.Config["body_schema"]
			if hasBody != tt.wantBody {
				t.Errorf("body_schema present = %v, want %v", hasBody, tt.wantBody)
			}
		})
	}
}

func TestSplitUpstream(t *testing.T) {
	tests := []struct {
		in          string
		wantService string
		wantURI     string
		wantErr     bool
	}{
		{"https://api.example.com/users", "https://api.example.com/users", "", false},
		{"https://api.example.com/v1/users/:id", "https://api.example.com/v1/users", "/v1/users/$(uri_captures.id)", false},
		{
			"http://svc:8080/users/:userId/posts/:postId?x=1",
			"http://svc:8080/users",
			"/users/$(uri_captures.userId)/posts/$(uri_captures.postId)",
			false,
		},
		{"https://api.example.com", "https://api.example.com", "", false},
		{"https://files.example.com/files/:name.json", "https://files.example.com/files", "/files/$(uri_captures.name).json", false},
		{"https://api.example.com/v1/items:batch", "https://api.example.com/v1/items:batch", "", false},
		{"/relative/path", "", "", true},
	}
	for _, tt := range tests {
		svc, uri, err := SplitUpstream(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SplitUpstream(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitUpstream(%q): unexpected error %v", tt.in, err)
			continue
		}
		if svc != tt.wantService || uri != tt.wantURI {
			t.Errorf("SplitUpstream(%q) = (%q, %q), want (%q, %q)", tt.in, svc, uri, tt.wantService, tt.wantURI)
		}
	}
}
