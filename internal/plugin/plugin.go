// Package plugin describes the fixed set of gateway plugins attached to every
// marketplace route.
//
// Each plugin kind has a Builder that turns a canonical route and a settings
// snapshot into the desired plugin state. Builders never talk to the
// gateway; the synchronizer applies what they produce.
//
// Creating a Builder:
//
//	type MyBuilder struct{}
//
//	func (MyBuilder) Name() string { return "my-plugin" }
//
//	func (MyBuilder) Build(in plugin.Input) (plugin.Desired, error) {
//	    return plugin.Desired{
//	        Name:    "my-plugin",
//	        Config:  map[string]interface{}{"key": in.Route.Name},
//	        Enabled: true,
//	    }, nil
//	}
package plugin

import (
	"fmt"

	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/settings"
)

// Input is everything a Builder may read.
type Input struct {
	// Route must carry its final id; route-level access groups derive from it.
	Route    *database.Route
	Settings settings.Snapshot
}

// Desired is the target state of one plugin on one route.
type Desired struct {
	Name    string
	Config  map[string]interface{}
	Enabled bool

	// OnlyIfPresent plugins are updated when the route already has them
	// and never created. Used to switch off a plugin that no longer applies.
	OnlyIfPresent bool
}

// Builder builds the desired state of one plugin kind.
type Builder interface {
	// Name returns the gateway plugin name.
	Name() string

	// Build returns the desired state. An error means the route cannot be
	// synchronized at all and nothing must be written to the gateway.
	Build(in Input) (Desired, error)
}

// Merger is implemented by builders whose config is combined with the
// config already on the gateway rather than replacing it.
type Merger interface {
	Merge(existing, desired map[string]interface{}) map[string]interface{}
}

// BuildError wraps a builder failure with the plugin name.
type BuildError struct {
	Plugin string
	Err    error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("plugin '%s': %v", e.Plugin, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
