package kong

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{Environment: "sandbox", BaseURL: srv.URL + "/", Token: "secret"})
}

func TestClient_UpsertService(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/services/api_example_com_users" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Kong-Admin-Token") != "secret" {
			t.Error("expected admin token header")
		}
		var svc Service
		if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		svc.ID = "svc-1"
		json.NewEncoder(w).Encode(svc)
	})

	svc, err := c.UpsertService(context.Background(), Service{
		Name: "api_example_com_users",
		URL:  "https://api.example.com/users",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.ID != "svc-1" || svc.URL != "https://api.example.com/users" {
		t.Errorf("unexpected service: %+v", svc)
	}
}

func TestClient_ListACLsFollowsOffsets(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/consumers/c1/acls" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"a1","group":"tier-1"},{"id":"a2","group":"route-x"}],"offset":"page2","next":"/consumers/c1/acls?offset=page2"}`)
		case "page2":
			fmt.Fprint(w, `{"data":[{"id":"a3","group":"route-y"}],"next":null}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	acls, err := c.ListACLs(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acls) != 3 {
		t.Fatalf("expected 3 acls across pages, got %d", len(acls))
	}
	if calls != 2 {
		t.Errorf("expected 2 page requests, got %d", calls)
	}
	if acls[2].ID != "a3" || acls[2].Group != "route-y" {
		t.Errorf("unexpected last acl: %+v", acls[2])
	}
}

func TestClient_Errors(t *testing.T) {
	status := http.StatusConflict
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"message":"unique constraint violation"}`)
	})

	_, err := c.AddACL(context.Background(), "c1", "tier-1")
	if !IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}

	status = http.StatusNotFound
	if err := c.DeleteACL(context.Background(), "c1", "gone"); err != nil {
		t.Errorf("expected deleting a missing acl to succeed, got %v", err)
	}
	if err := c.DeleteRoute(context.Background(), "gone"); err != nil {
		t.Errorf("expected deleting a missing route to succeed, got %v", err)
	}

	status = http.StatusBadRequest
	_, err = c.UpdateRoute(context.Background(), "r1", Route{Name: "x"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Method != http.MethodPatch {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestClient_CreateRouteUsesServicePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/services/svc-1/routes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["service"]; ok {
			t.Error("expected nested route create to omit service reference")
		}
		fmt.Fprint(w, `{"id":"route-1","name":"users","paths":["~/users/(?<id>[^/]+)"],"methods":["GET"]}`)
	})

	route, err := c.CreateRoute(context.Background(), "svc-1", Route{
		Name:    "users",
		Paths:   []string{"~/users/(?<id>[^/]+)"},
		Methods: []string{"GET"},
		Service: &Ref{ID: "svc-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.ID != "route-1" {
		t.Errorf("expected route-1, got %s", route.ID)
	}
}

func TestGateway_UnknownEnvironment(t *testing.T) {
	g := NewGateway(map[string]*Client{"sandbox": NewClient(ClientConfig{BaseURL: "http://localhost:8001"})})

	_, err := g.UpsertConsumer(context.Background(), "production", Consumer{Username: "c1"})
	if !apperr.IsBadRequest(err) {
		t.Errorf("expected bad request for unknown environment, got %v", err)
	}
	if envs := g.Environments(); len(envs) != 1 || envs[0] != "sandbox" {
		t.Errorf("unexpected environments: %v", envs)
	}
}

type countingLimiter struct {
	keys []string
	err  error
}

func (l *countingLimiter) Wait(_ context.Context, key string) error {
	l.keys = append(l.keys, key)
	return l.err
}

func TestClient_Limiter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	lim := &countingLimiter{}
	c := NewClient(ClientConfig{Environment: "production", BaseURL: srv.URL, Limiter: lim})
	if err := c.Status(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lim.keys) != 1 || lim.keys[0] != "production" {
		t.Errorf("expected one wait keyed by environment, got %v", lim.keys)
	}

	lim.err = context.DeadlineExceeded
	if err := c.Status(context.Background()); err == nil {
		t.Error("expected throttled call to fail")
	}
	if calls != 1 {
		t.Errorf("expected throttled call not to reach the gateway, got %d calls", calls)
	}
}
