package access

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/kong"
	"github.com/saidutt46/switchboard-marketplace/internal/lock"
)

type fakeAdmin struct {
	mu     sync.Mutex
	acls   []kong.ACL
	nextID int
	calls  []string
}

func (f *fakeAdmin) UpsertConsumer(_ context.Context, env string, c kong.Consumer) (*kong.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upsert_consumer:"+c.Username)
	c.ID = "consumer-" + c.Username
	return &c, nil
}

func (f *fakeAdmin) ListACLs(_ context.Context, env, consumerID string) ([]kong.ACL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list_acls")
	return append([]kong.ACL(nil), f.acls...), nil
}

func (f *fakeAdmin) AddACL(_ context.Context, env, consumerID, group string) (*kong.ACL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add:"+group)
	for _, a := range f.acls {
		if a.Group == group {
			return nil, &kong.APIError{StatusCode: 409, Method: "POST", Path: "/acls", Body: "unique constraint violation"}
		}
	}
	f.nextID++
	acl := kong.ACL{ID: fmt.Sprintf("acl-new-%d", f.nextID), Group: group}
	f.acls = append(f.acls, acl)
	return &acl, nil
}

func (f *fakeAdmin) DeleteACL(_ context.Context, env, consumerID, aclID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+aclID)
	for i, a := range f.acls {
		if a.ID == aclID {
			f.acls = append(f.acls[:i], f.acls[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAdmin) groups() []string {
	var out []string
	for _, a := range f.acls {
		out = append(out, a.Group)
	}
	return out
}

type fakeStore struct {
	companies map[string]*database.Company
	routes    map[string]string // id -> environment
}

func (s *fakeStore) GetCompanyByID(_ context.Context, id string) (*database.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return nil, apperr.NotFound("company not found: %s", id)
	}
	return c, nil
}

func (s *fakeStore) FindRoutes(_ context.Context, f database.RouteFilter) ([]*database.Route, error) {
	var out []*database.Route
	for _, id := range f.IDs {
		if env, ok := s.routes[id]; ok && env == f.Environment {
			out = append(out, &database.Route{ID: id, Environment: env})
		}
	}
	return out, nil
}

func newTestReconciler(existing []kong.ACL) (*Reconciler, *fakeAdmin, *events.ChannelPublisher) {
	admin := &fakeAdmin{acls: existing}
	store := &fakeStore{
		companies: map[string]*database.Company{"acme": {ID: "acme", Name: "Acme", Tier: 2}},
		routes:    map[string]string{"A": "sandbox", "B": "sandbox", "C": "sandbox", "P": "production"},
	}
	pub := events.NewChannelPublisher(16)
	return NewReconciler(admin, store, lock.NewLocal(), pub), admin, pub
}

func assertEvents(t *testing.T, pub *events.ChannelPublisher, assigned, unassigned []string) {
	t.Helper()
	evs := pub.Drain()
	if len(evs) != 2 {
		t.Fatalf("expected assign and unassign events, got %+v", evs)
	}
	if evs[0].Name != events.APIAssign || evs[1].Name != events.APIUnassign {
		t.Fatalf("unexpected event names: %s, %s", evs[0].Name, evs[1].Name)
	}
	if got := evs[0].Metadata["route_ids"]; !reflect.DeepEqual(got, assigned) {
		t.Errorf("assign route_ids = %v, want %v", got, assigned)
	}
	if got := evs[1].Metadata["route_ids"]; !reflect.DeepEqual(got, unassigned) {
		t.Errorf("unassign route_ids = %v, want %v", got, unassigned)
	}
	if evs[0].Metadata["company_id"] != "acme" || evs[0].Author != "admin" {
		t.Errorf("expected company context on events, got %+v", evs[0])
	}
}

func TestReconcile_RemovesEverythingWhenDesiredIsEmpty(t *testing.T) {
	r, admin, pub := newTestReconciler([]kong.ACL{
		{ID: "g-tier", Group: "tier-2"},
		{ID: "g-a", Group: "route-A"},
		{ID: "g-b", Group: "route-B"},
	})

	res, err := r.Reconcile(context.Background(), "admin", Request{CompanyID: "acme", Environment: "sandbox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.Removed, []string{"A", "B"}) || len(res.Added) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.TierGroup != "tier-2" || res.ConsumerID != "consumer-acme" {
		t.Errorf("unexpected result: %+v", res)
	}

	wantCalls := []string{"upsert_consumer:acme", "list_acls", "delete:g-a", "delete:g-b", "add:tier-2"}
	if !reflect.DeepEqual(admin.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", admin.calls, wantCalls)
	}
	if !reflect.DeepEqual(admin.groups(), []string{"tier-2"}) {
		t.Errorf("unexpected remaining groups %v", admin.groups())
	}
	assertEvents(t, pub, []string{}, []string{"A", "B"})
}

func TestReconcile_AddsMissingRoutes(t *testing.T) {
	r, admin, pub := newTestReconciler([]kong.ACL{
		{ID: "g-tier", Group: "tier-2"},
		{ID: "g-a", Group: "route-A"},
	})

	res, err := r.Reconcile(context.Background(), "admin", Request{
		CompanyID:   "acme",
		Environment: "sandbox",
		RouteIDs:    []string{"A", "B", "C"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.Added, []string{"B", "C"}) || len(res.Removed) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	wantCalls := []string{"upsert_consumer:acme", "list_acls", "add:route-B", "add:route-C", "add:tier-2"}
	if !reflect.DeepEqual(admin.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", admin.calls, wantCalls)
	}
	assertEvents(t, pub, []string{"B", "C"}, []string{})
}

func TestReconcile_DropsUnknownRoutes(t *testing.T) {
	r, admin, _ := newTestReconciler(nil)

	res, err := r.Reconcile(context.Background(), "admin", Request{
		CompanyID:   "acme",
		Environment: "sandbox",
		RouteIDs:    []string{"A", "missing", "P", "A"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.Added, []string{"A"}) {
		t.Errorf("expected only the live sandbox route to be granted, got %v", res.Added)
	}
	if !reflect.DeepEqual(admin.groups(), []string{"route-A", "tier-2"}) {
		t.Errorf("unexpected groups %v", admin.groups())
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	r, admin, _ := newTestReconciler(nil)
	req := Request{CompanyID: "acme", Environment: "sandbox", RouteIDs: []string{"A", "B"}}

	for i := 0; i < 2; i++ {
		if _, err := r.Reconcile(context.Background(), "admin", req); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if !reflect.DeepEqual(admin.groups(), []string{"route-A", "route-B", "tier-2"}) {
		t.Errorf("unexpected groups after two runs %v", admin.groups())
	}
}

func TestReconcile_UnknownCompany(t *testing.T) {
	r, admin, pub := newTestReconciler(nil)

	_, err := r.Reconcile(context.Background(), "admin", Request{CompanyID: "ghost", Environment: "sandbox"})
	if !apperr.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if len(admin.calls) != 0 {
		t.Errorf("expected no gateway calls, got %v", admin.calls)
	}
	if evs := pub.Drain(); len(evs) != 0 {
		t.Errorf("expected no events, got %+v", evs)
	}
}

func TestReconcile_ConcurrentRunsAreSerialized(t *testing.T) {
	r, admin, _ := newTestReconciler(nil)

	var wg sync.WaitGroup
	for _, ids := range [][]string{{"A"}, {"B"}, {"A", "C"}, {}} {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			if _, err := r.Reconcile(context.Background(), "admin", Request{CompanyID: "acme", Environment: "sandbox", RouteIDs: ids}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(ids)
	}
	wg.Wait()

	// The last run wins as a whole.
	var got []string
	for _, g := range admin.groups() {
		if g != "tier-2" {
			got = append(got, strings.TrimPrefix(g, "route-"))
		}
	}
	sort.Strings(got)
	key := strings.Join(got, ",")
	if key != "A" && key != "B" && key != "A,C" && key != "" {
		t.Errorf("grant set %v matches no caller's request", got)
	}
}
