package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/saidutt46/switchboard-marketplace/internal/apispec"
	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin/builtin"
)

func TestDownstreamPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/users/{id}", "~/users/(?<id>[^/]+)"},
		{"/users/{userId}/posts/{postId}", "~/users/(?<userId>[^/]+)/posts/(?<postId>[^/]+)"},
		{"/health", "~/health"},
		{"/v1.0/items/{id}", `~/v1\.0/items/(?<id>[^/]+)`},
		{"/files/{name}.json", `~/files/(?<name>[^/]+)\.json`},
	}
	for _, tt := range tests {
		if got := DownstreamPath(tt.in); got != tt.want {
			t.Errorf("DownstreamPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpstreamPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/users/{id}", "/users/:id"},
		{"/users/{userId}/posts/{postId}", "/users/:userId/posts/:postId"},
		{"/health", "/health"},
		{"/files/{name}.json", "/files/:name.json"},
	}
	for _, tt := range tests {
		if got := UpstreamPath(tt.in); got != tt.want {
			t.Errorf("UpstreamPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Get user", "get-user"},
		{"  Users API (v2)! ", "users-api-v2"},
		{"GET /users/{id}", "get-users-id"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		override string
		declared string
		want     string
		wantErr  bool
	}{
		{"override wins", "https://override.example.com/", "https://declared.example.com", "https://override.example.com", false},
		{"declared", "", "http://declared.example.com/v1", "http://declared.example.com/v1", false},
		{"none", "", "", "", true},
		{"relative", "", "/v1", "", true},
		{"bad scheme", "ftp://files.example.com", "", "", true},
		{"no host", "https://", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tt.override, tt.declared)
			if tt.wantErr {
				if !apperr.IsBadRequest(err) {
					t.Errorf("expected bad request, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpointToRoute(t *testing.T) {
	meta := apispec.Metadata{Title: "Users", BaseURL: "https://api.example.com/v1/"}
	ep := apispec.Endpoint{
		Name:        "Update user",
		Description: "Updates a user.",
		Path:        "/users/{id}",
		Method:      "PUT",
		Parameters: []apispec.Parameter{
			{Name: "id", In: apispec.InPath, Required: true, Type: "string", Schema: map[string]interface{}{"type": "string"}},
			{Name: "X-Tenant", In: apispec.InHeader, Type: "string", Schema: map[string]interface{}{"type": "string", "default": "acme"}},
			{Name: "X-Trace", In: apispec.InHeader, Type: "string", Schema: map[string]interface{}{"type": "string"}},
			{Name: "page", In: apispec.InQuery, Type: "integer", Schema: map[string]interface{}{"type": "integer", "default": float64(1)}},
			{Name: "role", In: apispec.InBody, Type: "string", Schema: map[string]interface{}{"type": "string", "default": "member"}},
			{Name: "name", In: apispec.InBody, Required: true, Type: "string", Schema: map[string]interface{}{"type": "string"}},
		},
		Responses: []apispec.Response{{Status: "204", Description: "Updated"}},
	}
	opts := Options{Environment: "sandbox", Tiers: []int64{1, 2}, Enabled: true}

	route, err := EndpointToRoute(meta, ep, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if route.Upstream.URL != "https://api.example.com/v1/users/:id" {
		t.Errorf("unexpected upstream URL %q", route.Upstream.URL)
	}
	if route.Downstream.Path != "~/users/(?<id>[^/]+)" {
		t.Errorf("unexpected downstream path %q", route.Downstream.Path)
	}
	if want := []database.KeyValue{{Key: "X-Tenant", Value: "acme"}}; !reflect.DeepEqual(route.Upstream.Headers, want) {
		t.Errorf("headers = %v, want only parameters with defaults %v", route.Upstream.Headers, want)
	}
	if want := []database.KeyValue{{Key: "page", Value: "1"}}; !reflect.DeepEqual(route.Upstream.Querystring, want) {
		t.Errorf("querystring = %v, want %v", route.Upstream.Querystring, want)
	}
	if len(route.Upstream.Body) != 0 {
		t.Errorf("expected body defaults not to be injected upstream, got %v", route.Upstream.Body)
	}
	if route.Slug != "update-user" || route.Environment != "sandbox" || !route.Enabled {
		t.Errorf("unexpected route fields %+v", route)
	}
	if !strings.Contains(route.Downstream.Response, `"status": "204"`) {
		t.Errorf("unexpected response summary %q", route.Downstream.Response)
	}

	params := builtin.ParseParameterTable(route.Downstream.Request)
	if len(params) != len(ep.Parameters) {
		t.Fatalf("expected request table to describe all %d parameters, got %+v", len(ep.Parameters), params)
	}
	if params[0].Name != "id" || params[0].In != "path" || !params[0].Required {
		t.Errorf("unexpected first table row %+v", params[0])
	}

	opts.Tiers[0] = 9
	if route.Tiers[0] != 1 {
		t.Error("expected tiers to be copied")
	}
}

func TestEndpointToRoute_NoBaseURL(t *testing.T) {
	_, err := EndpointToRoute(apispec.Metadata{}, apispec.Endpoint{Name: "x", Path: "/x", Method: "GET"}, Options{})
	if !apperr.IsBadRequest(err) {
		t.Errorf("expected bad request, got %v", err)
	}
}

func TestEndpointToRoute_SegmentSuffix(t *testing.T) {
	meta := apispec.Metadata{BaseURL: "https://files.example.com"}
	ep := apispec.Endpoint{Name: "Get file", Path: "/files/{name}.json", Method: "GET"}

	route, err := EndpointToRoute(meta, ep, Options{Environment: "sandbox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, uri, err := builtin.SplitUpstream(route.Upstream.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uri != "/files/$(uri_captures.name).json" {
		t.Errorf("upstream uri %q does not reuse the downstream capture", uri)
	}
	if !strings.Contains(route.Downstream.Path, "(?<name>") {
		t.Errorf("unexpected downstream path %q", route.Downstream.Path)
	}
}

func TestEndpointToRoute_UnsupportedPlaceholder(t *testing.T) {
	meta := apispec.Metadata{BaseURL: "https://api.example.com"}
	tests := []struct {
		name string
		path string
	}{
		{"inside segment", "/reports/report-{id}"},
		{"not an identifier", "/users/{user-id}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := apispec.Endpoint{Name: "x", Path: tt.path, Method: "GET"}
			_, err := EndpointToRoute(meta, ep, Options{Environment: "sandbox"})
			if !apperr.IsBadRequest(err) {
				t.Errorf("expected bad request for %s, got %v", tt.path, err)
			}
		})
	}
}
