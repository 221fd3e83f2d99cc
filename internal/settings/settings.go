// Package settings provides immutable, environment-scoped snapshots of the
// key/value settings consumed by gateway synchronization.
//
// A Snapshot is taken once per operation and passed down explicitly, so the
// synchronizer never re-reads settings halfway through a multi-step sync.
package settings

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
)

// Setting keys.
const (
	KeyIntrospectionEndpoint     = "introspection_endpoint"
	KeyIntrospectionClientID     = "introspection_client_id"
	KeyIntrospectionClientSecret = "introspection_client_secret"
)

// Source loads the raw settings of one environment.
type Source interface {
	GetSettings(ctx context.Context, environment string) (map[string]string, error)
}

// Snapshot is a read-only copy of one environment's settings.
type Snapshot struct {
	environment string
	values      map[string]string
}

// NewSnapshot copies values into a new Snapshot.
func NewSnapshot(environment string, values map[string]string) Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{environment: environment, values: copied}
}

// Environment returns the environment the snapshot belongs to.
func (s Snapshot) Environment() string {
	return s.environment
}

// Get returns a non-empty setting value.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok && v != ""
}

// Introspection holds the token introspection client configuration.
type Introspection struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
}

// Introspection returns the introspection configuration, or a BadRequest
// error naming every missing key.
func (s Snapshot) Introspection() (Introspection, error) {
	var missing []string
	get := func(key string) string {
		v, ok := s.Get(key)
		if !ok {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Introspection{
		Endpoint:     get(KeyIntrospectionEndpoint),
		ClientID:     get(KeyIntrospectionClientID),
		ClientSecret: get(KeyIntrospectionClientSecret),
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Introspection{}, apperr.BadRequest("introspection settings missing for %s environment", s.environment).
			WithDetails(missing)
	}
	return cfg, nil
}

// Load reads a fresh snapshot from source.
func Load(ctx context.Context, source Source, environment string) (Snapshot, error) {
	values, err := source.GetSettings(ctx, environment)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load %s settings: %w", environment, err)
	}
	return NewSnapshot(environment, values), nil
}

// Cache memoizes snapshots per environment until invalidated.
type Cache struct {
	source Source

	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewCache creates a snapshot cache over source.
func NewCache(source Source) *Cache {
	return &Cache{
		source:    source,
		snapshots: make(map[string]Snapshot),
	}
}

// Snapshot returns the cached snapshot of environment, loading it on first use.
func (c *Cache) Snapshot(ctx context.Context, environment string) (Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[environment]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := Load(ctx, c.source, environment)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.snapshots[environment] = snap
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached snapshot of environment, or all snapshots
// when environment is empty.
func (c *Cache) Invalidate(environment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if environment == "" {
		c.snapshots = make(map[string]Snapshot)
		return
	}
	delete(c.snapshots, environment)
}
