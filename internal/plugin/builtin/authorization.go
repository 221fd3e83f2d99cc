package builtin

import (
	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
)

// Authorization configures token introspection from the environment's
// settings. Routes without introspection only get an existing plugin
// switched off.
type Authorization struct{}

// Name implements plugin.Builder.
func (Authorization) Name() string { return NameAuthorization }

// Build implements plugin.Builder. Missing introspection settings are a
// BadRequest.
func (Authorization) Build(in plugin.Input) (plugin.Desired, error) {
	if !in.Route.IntrospectAuthorization {
		return plugin.Desired{
			Name:          NameAuthorization,
			Enabled:       false,
			OnlyIfPresent: true,
		}, nil
	}

	cfg, err := in.Settings.Introspection()
	if err != nil {
		return plugin.Desired{}, err
	}

	return plugin.Desired{
		Name: NameAuthorization,
		Config: map[string]interface{}{
			"introspection_endpoint": cfg.Endpoint,
			"client_id":              cfg.ClientID,
			"client_secret":          cfg.ClientSecret,
		},
		Enabled: true,
	}, nil
}
