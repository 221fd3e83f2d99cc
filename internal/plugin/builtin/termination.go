package builtin

import (
	"net/http"

	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
)

// UnavailableMessage is returned to callers of a disabled route.
const UnavailableMessage = "This API is currently unavailable"

// Termination is an inverted kill switch: the plugin is enabled exactly
// when the route is disabled.
type Termination struct{}

// Name implements plugin.Builder.
func (Termination) Name() string { return NameTermination }

// Build implements plugin.Builder.
func (Termination) Build(in plugin.Input) (plugin.Desired, error) {
	return plugin.Desired{
		Name: NameTermination,
		Config: map[string]interface{}{
			"status_code": http.StatusServiceUnavailable,
			"message":     UnavailableMessage,
		},
		Enabled: !in.Route.Enabled,
	}, nil
}
