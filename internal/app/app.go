// Package app wires configuration into the sync engine's components.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/saidutt46/switchboard-marketplace/internal/access"
	"github.com/saidutt46/switchboard-marketplace/internal/apis"
	"github.com/saidutt46/switchboard-marketplace/internal/apispec"
	"github.com/saidutt46/switchboard-marketplace/internal/config"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/events"
	"github.com/saidutt46/switchboard-marketplace/internal/gateway"
	"github.com/saidutt46/switchboard-marketplace/internal/health"
	"github.com/saidutt46/switchboard-marketplace/internal/importer"
	"github.com/saidutt46/switchboard-marketplace/internal/kong"
	"github.com/saidutt46/switchboard-marketplace/internal/lock"
	"github.com/saidutt46/switchboard-marketplace/internal/plugin/builtin"
	"github.com/saidutt46/switchboard-marketplace/internal/ratelimit"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

// App holds every long-lived component.
type App struct {
	Config *config.Config

	DB    *database.DB
	Repo  *database.Repository
	Redis *redis.Client // nil without REDIS_URL

	Gateway  *kong.Gateway
	Settings *settings.Cache
	Locker   lock.Locker
	Events   events.Publisher

	Routes   *apis.Service
	Access   *access.Reconciler
	Importer *importer.Importer

	closers []func() error
}

// New connects to every dependency and builds the components. Close must
// be called when done.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db
	a.Repo = database.NewRepository(db)
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.URL != "" {
		client, err := lock.NewClient(lock.DefaultClientConfig(cfg.Redis.URL))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = client
		a.closers = append(a.closers, client.Close)
		a.Locker = lock.NewRedis(client, cfg.Redis.LockTTL, cfg.Redis.LockWait)
	} else {
		log.Warn().
			Str("component", "app").
			Msg("REDIS_URL not set, using in-process locks")
		a.Locker = lock.NewLocal()
	}

	var publishers events.Fanout
	if cfg.Kafka.Brokers != "" {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, kp.Close)
		publishers = append(publishers, kp)
	}
	a.Events = publishers

	a.Gateway = kong.NewGateway(a.gatewayClients())
	a.Settings = settings.NewCache(a.Repo)

	syncer := gateway.NewSynchronizer(a.Gateway, builtin.NewRegistry())
	a.Routes = apis.NewService(a.Repo, syncer, a.Settings, a.Locker, a.Events)
	a.Access = access.NewReconciler(a.Gateway, a.Repo, a.Locker, a.Events)
	a.Importer = importer.New(apispec.NewRegistry(), a.Repo, a.Routes, a.Events)

	return a, nil
}

func (a *App) gatewayClients() map[string]*kong.Client {
	var limiter ratelimit.Limiter
	if rate := a.Config.Gateway.RateLimit; rate > 0 {
		if a.Redis != nil {
			limiter = ratelimit.NewTokenBucket(a.Redis, ratelimit.DefaultTokenBucketConfig(rate, a.Config.Gateway.RateBurst))
		} else {
			limiter = ratelimit.NewLocal(rate, a.Config.Gateway.RateBurst)
		}
	}

	transport := kong.NewTransport(nil)
	clients := make(map[string]*kong.Client)
	for env, url := range a.Config.Gateway.AdminURLs() {
		clients[env] = kong.NewClient(kong.ClientConfig{
			Environment: env,
			BaseURL:     url,
			Token:       a.Config.Gateway.AdminToken,
			Timeout:     a.Config.Gateway.Timeout,
			Transport:   transport,
			Limiter:     limiter,
		})
	}
	return clients
}

// SettingsWatcher returns the redis watcher keeping the settings cache
// fresh, or nil without redis.
func (a *App) SettingsWatcher() *settings.Watcher {
	if a.Redis == nil {
		return nil
	}
	return settings.NewWatcher(a.Redis, a.Config.Redis.SettingsChannel, a.Settings)
}

// Health builds the health handler: the database plus one required check
// per gateway environment, and redis as an optional check.
func (a *App) Health(version string) *health.Handler {
	h := health.NewHandler(a.DB, version)
	for _, env := range a.Gateway.Environments() {
		env := env
		h.AddCheck("gateway_"+env, func(ctx context.Context) error {
			return a.Gateway.Status(ctx, env)
		}, true)
	}
	if w := a.SettingsWatcher(); w != nil {
		h.AddCheck("redis", w.HealthCheck, false)
	}
	return h
}

// Close releases every connection in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
