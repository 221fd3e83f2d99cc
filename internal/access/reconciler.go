// Package access reconciles a company's gateway access grants with the set
// of routes it should reach.
//
// A company is one gateway consumer. Its ACL groups are either a tier grant
// ("tier-2"), which opens every route of that tier, or route grants
// ("route-{id}"), which open one route each. Only route grants are diffed;
// the tier grant is re-asserted on every run.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/kong"
	"github.com/saidutt46/switchboard-marketplace/internal/lock"
	"github.com/saidutt46/switchboard-marketplace/internal/metrics"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin/builtin"
)

// Admin is the consumer side of the gateway admin API.
type Admin interface {
	UpsertConsumer(ctx context.Context, env string, consumer kong.Consumer) (*kong.Consumer, error)
	ListACLs(ctx context.Context, env, consumerID string) ([]kong.ACL, error)
	AddACL(ctx context.Context, env, consumerID, group string) (*kong.ACL, error)
	DeleteACL(ctx context.Context, env, consumerID, aclID string) error
}

// Store looks up companies and routes.
type Store interface {
	GetCompanyByID(ctx context.Context, id string) (*database.Company, error)
	FindRoutes(ctx context.Context, filter database.RouteFilter) ([]*database.Route, error)
}

// Request asks for the route grants of a company to equal RouteIDs.
type Request struct {
	CompanyID   string
	Environment string
	RouteIDs    []string
}

// Result reports what a reconciliation changed.
type Result struct {
	ConsumerID string   `json:"consumer_id"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	TierGroup  string   `json:"tier_group"`
}

// Reconciler makes gateway grants match the desired route set.
type Reconciler struct {
	admin  Admin
	store  Store
	locker lock.Locker
	events events.Publisher
}

// NewReconciler creates a Reconciler.
func NewReconciler(admin Admin, store Store, locker lock.Locker, publisher events.Publisher) *Reconciler {
	return &Reconciler{admin: admin, store: store, locker: locker, events: publisher}
}

// Reconcile applies req. Work for one company is serialized through the
// company-access lock, so concurrent runs cannot interleave their
// read-then-write of the grant set.
func (r *Reconciler) Reconcile(ctx context.Context, author string, req Request) (*Result, error) {
	company, err := r.store.GetCompanyByID(ctx, req.CompanyID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.BadRequest("unknown company: %s", req.CompanyID).Wrap(err)
		}
		return nil, err
	}

	var res *Result
	err = lock.With(ctx, r.locker, lock.CompanyAccessKey(company.ID), func() error {
		var err error
		res, err = r.reconcile(ctx, company, req)
		return err
	})
	if res != nil {
		metrics.RecordReconciliation(len(res.Added), len(res.Removed), err)
	} else {
		metrics.RecordReconciliation(0, 0, err)
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("component", "access").
			Str("company_id", company.ID).
			Str("environment", req.Environment).
			Msg("Access reconciliation failed")
		return nil, err
	}

	meta := func(ids []string) map[string]interface{} {
		return map[string]interface{}{
			"company_id":   company.ID,
			"company_name": company.Name,
			"environment":  req.Environment,
			"consumer_id":  res.ConsumerID,
			"route_ids":    ids,
		}
	}
	r.events.Publish(ctx, events.New(events.APIAssign, author, meta(res.Added)))
	r.events.Publish(ctx, events.New(events.APIUnassign, author, meta(res.Removed)))

	log.Info().
		Str("component", "access").
		Str("company_id", company.ID).
		Str("environment", req.Environment).
		Int("added", len(res.Added)).
		Int("removed", len(res.Removed)).
		Msg("Access reconciled")

	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, company *database.Company, req Request) (*Result, error) {
	env := req.Environment

	consumer, err := r.admin.UpsertConsumer(ctx, env, kong.Consumer{
		Username: company.ID,
		CustomID: company.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert consumer: %w", err)
	}

	acls, err := r.admin.ListACLs(ctx, env, consumer.ID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	// grant id by route id
	existing := make(map[string]string)
	var existingOrder []string
	for _, acl := range acls {
		if !strings.HasPrefix(acl.Group, builtin.RouteGroupPrefix) {
			continue
		}
		routeID := strings.TrimPrefix(acl.Group, builtin.RouteGroupPrefix)
		if _, dup := existing[routeID]; !dup {
			existingOrder = append(existingOrder, routeID)
		}
		existing[routeID] = acl.ID
	}

	desired, err := r.desiredRoutes(ctx, env, req.RouteIDs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ConsumerID: consumer.ID,
		Added:      []string{},
		Removed:    []string{},
		TierGroup:  builtin.TierGroup(int64(company.Tier)),
	}

	wanted := make(map[string]bool, len(desired))
	for _, id := range desired {
		wanted[id] = true
		if _, ok := existing[id]; ok {
			continue
		}
		if _, err := r.admin.AddACL(ctx, env, consumer.ID, builtin.RouteGroup(id)); err != nil && !kong.IsConflict(err) {
			return nil, fmt.Errorf("grant route %s: %w", id, err)
		}
		res.Added = append(res.Added, id)
	}

	for _, id := range existingOrder {
		if wanted[id] {
			continue
		}
		if err := r.admin.DeleteACL(ctx, env, consumer.ID, existing[id]); err != nil {
			return nil, fmt.Errorf("revoke route %s: %w", id, err)
		}
		res.Removed = append(res.Removed, id)
	}

	if _, err := r.admin.AddACL(ctx, env, consumer.ID, res.TierGroup); err != nil && !kong.IsConflict(err) {
		return nil, fmt.Errorf("grant %s: %w", res.TierGroup, err)
	}

	return res, nil
}

// desiredRoutes keeps the ids that are live routes of env, in request order.
func (r *Reconciler) desiredRoutes(ctx context.Context, env string, ids []string) ([]string, error) {
	var unique []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	routes, err := r.store.FindRoutes(ctx, database.RouteFilter{IDs: unique, Environment: env})
	if err != nil {
		return nil, fmt.Errorf("resolve routes: %w", err)
	}
	found := make(map[string]bool, len(routes))
	for _, route := range routes {
		found[route.ID] = true
	}

	out := make([]string, 0, len(unique))
	for _, id := range unique {
		if found[id] {
			out = append(out, id)
			continue
		}
		log.Debug().
			Str("component", "access").
			Str("route_id", id).
			Str("environment", env).
			Msg("Dropping unknown route from desired grants")
	}
	return out, nil
}
