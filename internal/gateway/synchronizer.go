// Package gateway keeps the gateway control plane in line with canonical
// route definitions.
//
// A sync always runs in the same order: plan every plugin, upsert the
// service, upsert the route, then create or patch each plugin. Planning
// first means a configuration error (such as missing introspection
// settings) is reported before anything is written to the gateway.
//
// Only the fixed set of plugins known to the registry is touched; plugins
// added to a route by other means are left alone.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/kong"
	"github.com/saidutt46/switchboard-marketplace/internal/metrics"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin/builtin"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

// Tag carried by every gateway entity this package writes.
const Tag = "marketplace"

// Admin is the part of the gateway admin API the synchronizer drives.
// *kong.Gateway implements it.
type Admin interface {
	UpsertService(ctx context.Context, env string, svc kong.Service) (*kong.Service, error)
	CreateRoute(ctx context.Context, env, serviceID string, route kong.Route) (*kong.Route, error)
	UpdateRoute(ctx context.Context, env, id string, route kong.Route) (*kong.Route, error)
	DeleteRoute(ctx context.Context, env, id string) error
	ListRoutePlugins(ctx context.Context, env, routeID string) ([]kong.Plugin, error)
	CreateRoutePlugin(ctx context.Context, env, routeID string, p kong.Plugin) (*kong.Plugin, error)
	UpdatePlugin(ctx context.Context, env, id string, p kong.Plugin) (*kong.Plugin, error)
}

// Synchronizer upserts gateway services, routes and plugins.
type Synchronizer struct {
	admin   Admin
	plugins *plugin.Registry
}

// NewSynchronizer creates a synchronizer. A nil registry uses the builtin
// plugin set.
func NewSynchronizer(admin Admin, plugins *plugin.Registry) *Synchronizer {
	if plugins == nil {
		plugins = builtin.NewRegistry()
	}
	return &Synchronizer{admin: admin, plugins: plugins}
}

// Result holds the gateway ids of a synchronized route.
type Result struct {
	ServiceID string
	RouteID   string
}

// Sync makes the gateway match route. route.ID must be set; route.GatewayRouteID
// is updated in place when known. The route row itself is not touched.
func (s *Synchronizer) Sync(ctx context.Context, route *database.Route, snap settings.Snapshot) (*Result, error) {
	res, err := s.sync(ctx, route, snap)
	op := "create"
	if route.GatewayRouteID != "" {
		op = "update"
	}
	metrics.RecordRouteSync(op, err)
	return res, err
}

func (s *Synchronizer) sync(ctx context.Context, route *database.Route, snap settings.Snapshot) (*Result, error) {
	if route.ID == "" {
		return nil, fmt.Errorf("route id must be assigned before sync")
	}

	plans, err := s.plugins.Plan(plugin.Input{Route: route, Settings: snap})
	if err != nil {
		return nil, err
	}

	serviceURL, _, err := builtin.SplitUpstream(route.Upstream.URL)
	if err != nil {
		return nil, err
	}
	tags := []string{Tag, route.Environment}

	svc, err := s.UpsertService(ctx, route.Environment, serviceURL, ServiceName(serviceURL), tags)
	if err != nil {
		return nil, err
	}

	kr, err := s.UpsertRoute(ctx, route.Environment, route.GatewayRouteID, RouteName(route),
		[]string{route.Downstream.Path}, []string{strings.ToUpper(route.Downstream.Method)}, svc.ID, tags)
	if err != nil {
		return nil, err
	}

	if err := s.SyncPlugins(ctx, route.Environment, kr.ID, plans); err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "synchronizer").
		Str("environment", route.Environment).
		Str("route_id", route.ID).
		Str("gateway_service_id", svc.ID).
		Str("gateway_route_id", kr.ID).
		Int("plugins", len(plans)).
		Msg("Route synchronized")

	return &Result{ServiceID: svc.ID, RouteID: kr.ID}, nil
}

// UpsertService creates or replaces the service called name.
func (s *Synchronizer) UpsertService(ctx context.Context, env, serviceURL, name string, tags []string) (*kong.Service, error) {
	svc, err := s.admin.UpsertService(ctx, env, kong.Service{
		Name: name,
		URL:  serviceURL,
		Tags: tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert service %s: %w", name, err)
	}
	return svc, nil
}

// UpsertRoute patches the route when existingID is known, otherwise creates
// it under serviceID. A known id that no longer exists on the gateway is
// recreated.
func (s *Synchronizer) UpsertRoute(ctx context.Context, env, existingID, name string, paths, methods []string, serviceID string, tags []string) (*kong.Route, error) {
	desired := kong.Route{
		Name:      name,
		Paths:     paths,
		Methods:   methods,
		Service:   &kong.Ref{ID: serviceID},
		StripPath: true,
		Tags:      tags,
	}

	if existingID != "" {
		kr, err := s.admin.UpdateRoute(ctx, env, existingID, desired)
		if err == nil {
			return kr, nil
		}
		if !kong.IsNotFound(err) {
			return nil, fmt.Errorf("failed to update route %s: %w", existingID, err)
		}
		log.Warn().
			Str("component", "synchronizer").
			Str("environment", env).
			Str("gateway_route_id", existingID).
			Msg("Gateway route missing, recreating")
	}

	kr, err := s.admin.CreateRoute(ctx, env, serviceID, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to create route %s: %w", name, err)
	}
	return kr, nil
}

// SyncPlugins creates or patches each planned plugin on the route.
func (s *Synchronizer) SyncPlugins(ctx context.Context, env, routeID string, plans []plugin.Desired) error {
	existing, err := s.admin.ListRoutePlugins(ctx, env, routeID)
	if err != nil {
		return fmt.Errorf("failed to list plugins of route %s: %w", routeID, err)
	}
	byName := make(map[string]kong.Plugin, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}

	for _, plan := range plans {
		current, found := byName[plan.Name]

		switch {
		case found:
			config := plan.Config
			if config != nil {
				config = s.plugins.Merge(plan.Name, current.Config, plan.Config)
			}
			if _, err := s.admin.UpdatePlugin(ctx, env, current.ID, kong.Plugin{
				Name:    plan.Name,
				Config:  config,
				Enabled: plan.Enabled,
			}); err != nil {
				return fmt.Errorf("failed to update plugin %s: %w", plan.Name, err)
			}

		case plan.OnlyIfPresent:
			continue

		default:
			if _, err := s.admin.CreateRoutePlugin(ctx, env, routeID, kong.Plugin{
				Name:    plan.Name,
				Config:  plan.Config,
				Enabled: plan.Enabled,
			}); err != nil {
				return fmt.Errorf("failed to create plugin %s: %w", plan.Name, err)
			}
		}

		log.Debug().
			Str("component", "synchronizer").
			Str("environment", env).
			Str("gateway_route_id", routeID).
			Str("plugin", plan.Name).
			Bool("enabled", plan.Enabled).
			Bool("existed", found).
			Msg("Plugin synchronized")
	}
	return nil
}

// Delete removes the route from the gateway. Services are shared between
// routes and stay.
func (s *Synchronizer) Delete(ctx context.Context, route *database.Route) error {
	if route.GatewayRouteID == "" {
		return nil
	}
	err := s.admin.DeleteRoute(ctx, route.Environment, route.GatewayRouteID)
	metrics.RecordRouteSync("delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete gateway route %s: %w", route.GatewayRouteID, err)
	}
	return nil
}

// RouteName is the gateway route name of a canonical route.
func RouteName(route *database.Route) string {
	return route.Environment + "-" + route.ID
}

// ServiceName derives an identifier-safe service name from a URL's host and
// path: lowercase, every run of other characters collapsed to "_".
func ServiceName(rawURL string) string {
	source := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		source = u.Host + u.Path
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(source) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
