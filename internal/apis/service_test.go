package apis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/gateway"
	"github.com/saidutt46/switchboard-marketplace/internal/lock"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

type fakeStore struct {
	routes    map[string]*database.Route
	failWrite error
}

func newFakeStore() *fakeStore {
	return &fakeStore{routes: make(map[string]*database.Route)}
}

func (s *fakeStore) CountRoutes(_ context.Context, f database.RouteFilter) (int, error) {
	n := 0
	for _, r := range s.routes {
		if r.Name == f.Name && r.Environment == f.Environment && r.ID != f.ExcludeID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetRouteByID(_ context.Context, id string) (*database.Route, error) {
	r, ok := s.routes[id]
	if !ok {
		return nil, apperr.NotFound("route not found: %s", id)
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) CreateRoute(_ context.Context, r *database.Route) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	cp := *r
	s.routes[r.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateRoute(_ context.Context, r *database.Route) error {
	return s.CreateRoute(context.Background(), r)
}

func (s *fakeStore) SoftDeleteRoute(_ context.Context, id string) error {
	delete(s.routes, id)
	return nil
}

type fakeSyncer struct {
	synced  []string
	deleted []string
	err     error
}

func (f *fakeSyncer) Sync(_ context.Context, r *database.Route, _ settings.Snapshot) (*gateway.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.synced = append(f.synced, r.ID)
	routeID := r.GatewayRouteID
	if routeID == "" {
		routeID = fmt.Sprintf("gw-%d", len(f.synced))
	}
	return &gateway.Result{ServiceID: "svc-1", RouteID: routeID}, nil
}

func (f *fakeSyncer) Delete(_ context.Context, r *database.Route) error {
	f.deleted = append(f.deleted, r.GatewayRouteID)
	return nil
}

type staticSettings struct{}

func (staticSettings) Snapshot(_ context.Context, env string) (settings.Snapshot, error) {
	return settings.NewSnapshot(env, nil), nil
}

func newTestService() (*Service, *fakeStore, *fakeSyncer, *events.ChannelPublisher) {
	store := newFakeStore()
	syncer := &fakeSyncer{}
	pub := events.NewChannelPublisher(16)
	return NewService(store, syncer, staticSettings{}, lock.NewLocal(), pub), store, syncer, pub
}

func validInput() RouteInput {
	return RouteInput{
		Name:        "Get user",
		Environment: "sandbox",
		Enabled:     true,
		Tiers:       []int64{1},
		Upstream:    database.Upstream{URL: "https://api.example.com/users/:id", Method: "get"},
		Downstream:  database.Downstream{Path: "~/users/(?<id>[^/]+)", Method: "get"},
	}
}

func TestRouteInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RouteInput)
		field  string
	}{
		{"valid", func(*RouteInput) {}, ""},
		{"missing name", func(in *RouteInput) { in.Name = "" }, "name"},
		{"bad environment", func(in *RouteInput) { in.Environment = "staging" }, "environment"},
		{"bad method", func(in *RouteInput) { in.Upstream.Method = "FETCH" }, "upstream.method"},
		{"bad path", func(in *RouteInput) { in.Downstream.Path = "users" }, "downstream.path"},
		{"bad tier", func(in *RouteInput) { in.Tiers = []int64{0} }, "tiers[0]"},
		{"bad collection", func(in *RouteInput) { in.CollectionID = "abc" }, "collection_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindBadRequest {
				t.Fatalf("expected bad request, got %v", err)
			}
			fields, _ := appErr.Details.([]FieldError)
			if len(fields) != 1 || fields[0].Field != tt.field {
				t.Errorf("expected one error on %q, got %+v", tt.field, fields)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, store, syncer, pub := newTestService()

	route, err := svc.Create(context.Background(), "alice", validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.ID == "" || route.GatewayRouteID != "gw-1" || route.GatewayServiceID != "svc-1" {
		t.Errorf("unexpected route ids: %+v", route)
	}
	if route.Slug != "get-user" || route.Upstream.Method != "GET" || route.Downstream.Method != "GET" {
		t.Errorf("expected slug and upper-cased methods, got %+v", route)
	}
	if _, ok := store.routes[route.ID]; !ok {
		t.Error("expected route to be stored")
	}
	if len(syncer.synced) != 1 {
		t.Errorf("expected one sync, got %d", len(syncer.synced))
	}

	evs := pub.Drain()
	if len(evs) != 1 || evs[0].Name != events.APICreate || evs[0].Author != "alice" {
		t.Fatalf("unexpected events: %+v", evs)
	}
	if evs[0].Metadata["route_id"] != route.ID {
		t.Errorf("unexpected event metadata: %v", evs[0].Metadata)
	}
}

func TestService_CreateDuplicateName(t *testing.T) {
	svc, _, syncer, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "alice", validInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(ctx, "alice", validInput())
	if !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request for duplicate name, got %v", err)
	}
	if len(syncer.synced) != 1 {
		t.Errorf("expected no gateway call for the duplicate, got %d syncs", len(syncer.synced))
	}

	other := validInput()
	other.Environment = "production"
	if _, err := svc.Create(ctx, "alice", other); err != nil {
		t.Errorf("expected the same name in another environment to be allowed, got %v", err)
	}
}

func TestService_CreateGatewayFailureStoresNothing(t *testing.T) {
	svc, store, syncer, pub := newTestService()
	syncer.err = errors.New("gateway down")

	if _, err := svc.Create(context.Background(), "alice", validInput()); err == nil {
		t.Fatal("expected error")
	}
	if len(store.routes) != 0 {
		t.Error("expected nothing stored after a gateway failure")
	}
	if evs := pub.Drain(); len(evs) != 0 {
		t.Errorf("expected no events, got %+v", evs)
	}
}

func TestService_CreateDatabaseFailure(t *testing.T) {
	svc, store, syncer, _ := newTestService()
	store.failWrite = errors.New("db down")

	if _, err := svc.Create(context.Background(), "alice", validInput()); err == nil {
		t.Fatal("expected error")
	}
	if len(syncer.synced) != 1 {
		t.Error("expected gateway to be synchronized before the database write")
	}
}

func TestService_Update(t *testing.T) {
	svc, _, _, pub := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub.Drain()

	in := validInput()
	in.Name = "Fetch user"
	in.Enabled = false
	updated, err := svc.Update(ctx, "bob", created.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.GatewayRouteID != created.GatewayRouteID {
		t.Errorf("expected gateway route id to be kept, got %s want %s", updated.GatewayRouteID, created.GatewayRouteID)
	}
	if updated.Name != "Fetch user" || updated.Enabled {
		t.Errorf("unexpected updated route: %+v", updated)
	}
	if evs := pub.Drain(); len(evs) != 1 || evs[0].Name != events.APIUpdate {
		t.Errorf("unexpected events: %+v", evs)
	}

	in.Environment = "production"
	if _, err := svc.Update(ctx, "bob", created.ID, in); !apperr.IsBadRequest(err) {
		t.Errorf("expected bad request for environment change, got %v", err)
	}

	if _, err := svc.Update(ctx, "bob", "missing", validInput()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, store, syncer, pub := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub.Drain()

	if err := svc.Delete(ctx, "alice", created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(syncer.deleted) != 1 || syncer.deleted[0] != created.GatewayRouteID {
		t.Errorf("expected gateway route to be deleted, got %v", syncer.deleted)
	}
	if len(store.routes) != 0 {
		t.Error("expected route to be soft-deleted")
	}
	if evs := pub.Drain(); len(evs) != 1 || evs[0].Name != events.APIDelete {
		t.Errorf("unexpected events: %+v", evs)
	}
}

func TestInputFromRoute(t *testing.T) {
	in := validInput()
	in.Slug = "custom"
	route := &database.Route{ID: "r1"}
	apply(route, in)

	back := InputFromRoute(route)
	if back.Name != in.Name || back.Slug != "custom" || back.Upstream.URL != in.Upstream.URL {
		t.Errorf("unexpected input: %+v", back)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("expected round-tripped input to validate, got %v", err)
	}
}
