package kong

import (
	"context"
	"sort"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

// Gateway dispatches admin calls to the gateway of a route environment.
type Gateway struct {
	clients map[string]*Client
}

// NewGateway creates a Gateway from one client per environment.
func NewGateway(clients map[string]*Client) *Gateway {
	return &Gateway{clients: clients}
}

// Environments returns the configured environments in sorted order.
func (g *Gateway) Environments() []string {
	envs := make([]string, 0, len(g.clients))
	for env := range g.clients {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// Client returns the admin client of env.
func (g *Gateway) Client(env string) (*Client, error) {
	c, ok := g.clients[env]
	if !ok {
		return nil, apperr.BadRequest("unknown environment: %q", env)
	}
	return c, nil
}

// Status checks the admin API of env.
func (g *Gateway) Status(ctx context.Context, env string) error {
	c, err := g.Client(env)
	if err != nil {
		return err
	}
	return c.Status(ctx)
}

// UpsertService upserts a service in env.
func (g *Gateway) UpsertService(ctx context.Context, env string, svc Service) (*Service, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.UpsertService(ctx, svc)
}

// CreateRoute creates a route in env.
func (g *Gateway) CreateRoute(ctx context.Context, env, serviceID string, route Route) (*Route, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.CreateRoute(ctx, serviceID, route)
}

// UpdateRoute patches a route in env.
func (g *Gateway) UpdateRoute(ctx context.Context, env, id string, route Route) (*Route, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.UpdateRoute(ctx, id, route)
}

// DeleteRoute deletes a route in env.
func (g *Gateway) DeleteRoute(ctx context.Context, env, id string) error {
	c, err := g.Client(env)
	if err != nil {
		return err
	}
	return c.DeleteRoute(ctx, id)
}

// ListRoutePlugins lists route plugins in env.
func (g *Gateway) ListRoutePlugins(ctx context.Context, env, routeID string) ([]Plugin, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.ListRoutePlugins(ctx, routeID)
}

// CreateRoutePlugin creates a route plugin in env.
func (g *Gateway) CreateRoutePlugin(ctx context.Context, env, routeID string, plugin Plugin) (*Plugin, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.CreateRoutePlugin(ctx, routeID, plugin)
}

// UpdatePlugin patches a plugin in env.
func (g *Gateway) UpdatePlugin(ctx context.Context, env, id string, plugin Plugin) (*Plugin, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.UpdatePlugin(ctx, id, plugin)
}

// UpsertConsumer upserts a consumer in env.
func (g *Gateway) UpsertConsumer(ctx context.Context, env string, consumer Consumer) (*Consumer, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.UpsertConsumer(ctx, consumer)
}

// ListACLs lists consumer ACLs in env.
func (g *Gateway) ListACLs(ctx context.Context, env, consumerID string) ([]ACL, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.ListACLs(ctx, consumerID)
}

// AddACL adds an ACL group membership in env.
func (g *Gateway) AddACL(ctx context.Context, env, consumerID, group string) (*ACL, error) {
	c, err := g.Client(env)
	if err != nil {
		return nil, err
	}
	return c.AddACL(ctx, consumerID, group)
}

// DeleteACL deletes an ACL group membership in env.
func (g *Gateway) DeleteACL(ctx context.Context, env, consumerID, aclID string) error {
	c, err := g.Client(env)
	if err != nil {
		return err
	}
	return c.DeleteACL(ctx, consumerID, aclID)
}
