// Package apis manages canonical route definitions. Every write goes to the
// gateway first and to the database last, so a stored route always has
// gateway resources behind it.
//
// A gateway success followed by a failed database write leaves an orphaned
// gateway route. That is logged and not rolled back.
package apis

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/gateway"
	"github.com/saidutt46/switchboard-marketplace/internal/lock"
	"github.com/saidutt46/switchboard-marketplace/internal/normalize"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

// RouteInput is a route definition as submitted by a user or produced by
// the import normalizer.
type RouteInput struct {
	Name         string `json:"name" yaml:"name" validate:"required,max=200"`
	Slug         string `json:"slug,omitempty" yaml:"slug" validate:"max=200"`
	Environment  string `json:"environment" yaml:"environment" validate:"required,oneof=sandbox production"`
	CollectionID string `json:"collection_id,omitempty" yaml:"collection_id" validate:"omitempty,uuid"`

	Enabled                 bool    `json:"enabled" yaml:"enabled"`
	IntrospectAuthorization bool    `json:"introspect_authorization" yaml:"introspect_authorization"`
	Tiers                   []int64 `json:"tiers" yaml:"tiers" validate:"dive,min=1"`

	Upstream   database.Upstream   `json:"upstream" yaml:"upstream"`
	Downstream database.Downstream `json:"downstream" yaml:"downstream"`
}

// Validate checks the input against its rules. Failures are a BadRequest
// carrying []FieldError details.
func (in *RouteInput) Validate() error {
	return Check(in, "route definition")
}

// InputFromRoute returns the input that reproduces route. Gateway ids and
// timestamps are not part of an input.
func InputFromRoute(route *database.Route) RouteInput {
	return RouteInput{
		Name:                    route.Name,
		Slug:                    route.Slug,
		Environment:             route.Environment,
		CollectionID:            route.CollectionID,
		Enabled:                 route.Enabled,
		IntrospectAuthorization: route.IntrospectAuthorization,
		Tiers:                   append([]int64(nil), route.Tiers...),
		Upstream:                route.Upstream,
		Downstream:              route.Downstream,
	}
}

// Store is the route persistence the service needs.
type Store interface {
	CountRoutes(ctx context.Context, filter database.RouteFilter) (int, error)
	GetRouteByID(ctx context.Context, id string) (*database.Route, error)
	CreateRoute(ctx context.Context, route *database.Route) error
	UpdateRoute(ctx context.Context, route *database.Route) error
	SoftDeleteRoute(ctx context.Context, id string) error
}

// Syncer applies routes to the gateway.
type Syncer interface {
	Sync(ctx context.Context, route *database.Route, snap settings.Snapshot) (*gateway.Result, error)
	Delete(ctx context.Context, route *database.Route) error
}

// SettingsProvider hands out settings snapshots.
type SettingsProvider interface {
	Snapshot(ctx context.Context, environment string) (settings.Snapshot, error)
}

// Service creates, updates and deletes canonical routes.
type Service struct {
	store    Store
	syncer   Syncer
	settings SettingsProvider
	locker   lock.Locker
	events   events.Publisher
}

// NewService creates a route service.
func NewService(store Store, syncer Syncer, settingsProvider SettingsProvider, locker lock.Locker, publisher events.Publisher) *Service {
	return &Service{
		store:    store,
		syncer:   syncer,
		settings: settingsProvider,
		locker:   locker,
		events:   publisher,
	}
}

// Get returns a route by id.
func (s *Service) Get(ctx context.Context, id string) (*database.Route, error) {
	return s.store.GetRouteByID(ctx, id)
}

// Create validates in, synchronizes the gateway and stores the route.
func (s *Service) Create(ctx context.Context, author string, in RouteInput) (*database.Route, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, in.Environment, in.Name, ""); err != nil {
		return nil, err
	}

	route := &database.Route{ID: uuid.NewString()}
	apply(route, in)

	var saved *database.Route
	err := lock.With(ctx, s.locker, lock.RouteKey(route.ID), func() error {
		var err error
		saved, err = s.syncAndStore(ctx, route, s.store.CreateRoute)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.New(events.APICreate, author, routeMetadata(saved)))
	return saved, nil
}

// Update replaces the definition of route id, keeping its gateway identity.
// The environment of a route cannot change.
func (s *Service) Update(ctx context.Context, author, id string, in RouteInput) (*database.Route, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var saved *database.Route
	err := lock.With(ctx, s.locker, lock.RouteKey(id), func() error {
		route, err := s.store.GetRouteByID(ctx, id)
		if err != nil {
			return err
		}
		if route.Environment != in.Environment {
			return apperr.BadRequest("route %s belongs to the %s environment", id, route.Environment)
		}
		if err := s.ensureUniqueName(ctx, in.Environment, in.Name, id); err != nil {
			return err
		}

		apply(route, in)
		saved, err = s.syncAndStore(ctx, route, s.store.UpdateRoute)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.New(events.APIUpdate, author, routeMetadata(saved)))
	return saved, nil
}

// Delete removes the gateway route and soft-deletes the row.
func (s *Service) Delete(ctx context.Context, author, id string) error {
	var route *database.Route
	err := lock.With(ctx, s.locker, lock.RouteKey(id), func() error {
		var err error
		route, err = s.store.GetRouteByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.syncer.Delete(ctx, route); err != nil {
			return err
		}
		return s.store.SoftDeleteRoute(ctx, id)
	})
	if err != nil {
		return err
	}

	s.events.Publish(ctx, events.New(events.APIDelete, author, routeMetadata(route)))
	return nil
}

func (s *Service) ensureUniqueName(ctx context.Context, env, name, excludeID string) error {
	n, err := s.store.CountRoutes(ctx, database.RouteFilter{
		Name:        name,
		Environment: env,
		ExcludeID:   excludeID,
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.BadRequest("a route named %q already exists in %s", name, env)
	}
	return nil
}

func (s *Service) syncAndStore(ctx context.Context, route *database.Route, write func(context.Context, *database.Route) error) (*database.Route, error) {
	snap, err := s.settings.Snapshot(ctx, route.Environment)
	if err != nil {
		return nil, err
	}

	res, err := s.syncer.Sync(ctx, route, snap)
	if err != nil {
		return nil, err
	}
	route.GatewayServiceID = res.ServiceID
	route.GatewayRouteID = res.RouteID

	if err := write(ctx, route); err != nil {
		log.Error().
			Err(err).
			Str("component", "apis").
			Str("route_id", route.ID).
			Str("gateway_route_id", route.GatewayRouteID).
			Msg("Gateway synchronized but database write failed; gateway route is orphaned")
		return nil, err
	}
	return route, nil
}

func apply(route *database.Route, in RouteInput) {
	route.Name = in.Name
	route.Slug = in.Slug
	if route.Slug == "" {
		route.Slug = normalize.Slugify(in.Name)
	}
	route.Environment = in.Environment
	route.CollectionID = in.CollectionID
	route.Enabled = in.Enabled
	route.IntrospectAuthorization = in.IntrospectAuthorization
	route.Tiers = pq.Int64Array(in.Tiers)
	route.Upstream = in.Upstream
	route.Upstream.Method = strings.ToUpper(in.Upstream.Method)
	route.Downstream = in.Downstream
	route.Downstream.Method = strings.ToUpper(in.Downstream.Method)
}

func routeMetadata(route *database.Route) map[string]interface{} {
	return map[string]interface{}{
		"route_id":           route.ID,
		"name":               route.Name,
		"environment":        route.Environment,
		"collection_id":      route.CollectionID,
		"gateway_route_id":   route.GatewayRouteID,
		"gateway_service_id": route.GatewayServiceID,
	}
}
