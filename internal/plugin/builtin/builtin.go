// Package builtin provides the plugin kinds every marketplace route carries.
package builtin

import "github.com/saidutt46/switchboard-marketplace/internal/plugin"

// Gateway plugin names.
const (
	NameTermination      = "request-termination"
	NameACL              = "acl"
	NameAuthorization    = "obn-authorization"
	NameRequestValidator = "obn-request-validator"
	NameTransformer      = "request-transformer"
)

// Access group prefixes. A consumer's ACL group names carry the meaning of
// the grant: a tier grant opens every route of that tier, a route grant
// opens one route.
const (
	TierGroupPrefix  = "tier-"
	RouteGroupPrefix = "route-"
)

// TierGroup returns the ACL group of a tier.
func TierGroup(tier int64) string {
	return TierGroupPrefix + itoa(tier)
}

// RouteGroup returns the ACL group of a single route.
func RouteGroup(routeID string) string {
	return RouteGroupPrefix + routeID
}

// NewRegistry returns a registry holding every builtin builder in the order
// they are applied.
func NewRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	r.Register(Termination{})
	r.Register(ACL{})
	r.Register(Authorization{})
	r.Register(RequestValidator{})
	r.Register(Transformer{})
	return r
}
