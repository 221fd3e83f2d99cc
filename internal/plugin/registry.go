// Package plugin - Registry of plugin builders
//
// The registry keeps builders in registration order, which is also the
// order plugins are applied to a route:
//
//	registry := plugin.NewRegistry()
//	registry.Register(builtin.Termination{})
//	registry.Register(builtin.ACL{})
//
//	plans, err := registry.Plan(plugin.Input{Route: route, Settings: snap})
package plugin

import (
	"github.com/rs/zerolog/log"
)

// Registry manages plugin builders.
type Registry struct {
	builders map[string]Builder
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
	}
}

// Register adds a builder. Registering the same name twice replaces the
// builder but keeps its original position.
func (r *Registry) Register(b Builder) {
	name := b.Name()
	if _, exists := r.builders[name]; exists {
		log.Warn().
			Str("component", "plugin_registry").
			Str("plugin", name).
			Msg("Plugin builder already registered - overwriting")
	} else {
		r.order = append(r.order, name)
	}

	r.builders[name] = b

	log.Debug().
		Str("component", "plugin_registry").
		Str("plugin", name).
		Msg("Plugin builder registered")
}

// IsRegistered checks if a builder is registered.
func (r *Registry) IsRegistered(name string) bool {
	_, exists := r.builders[name]
	return exists
}

// Get returns the builder of name.
func (r *Registry) Get(name string) (Builder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Names returns the registered plugin names in application order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Plan builds the desired state of every registered plugin. It fails on
// the first builder error so callers can abort before touching the gateway.
func (r *Registry) Plan(in Input) ([]Desired, error) {
	plans := make([]Desired, 0, len(r.order))
	for _, name := range r.order {
		desired, err := r.builders[name].Build(in)
		if err != nil {
			return nil, &BuildError{Plugin: name, Err: err}
		}
		if desired.Name == "" {
			desired.Name = name
		}
		plans = append(plans, desired)
	}
	return plans, nil
}

// Merge combines existing gateway config with desired config for plugins
// whose builder implements Merger; others get desired as is.
func (r *Registry) Merge(name string, existing, desired map[string]interface{}) map[string]interface{} {
	b, ok := r.builders[name]
	if !ok {
		return desired
	}
	m, ok := b.(Merger)
	if !ok {
		return desired
	}
	return m.Merge(existing, desired)
}
