package builtin

import (
	"strconv"

	"github.com/saidutt46/switchboard-marketplace/internal/plugin"
)

// ACL allows consumers holding one of the route's tier groups or the
// route's own group.
type ACL struct{}

// Name implements plugin.Builder.
func (ACL) Name() string { return NameACL }

// Build implements plugin.Builder.
func (ACL) Build(in plugin.Input) (plugin.Desired, error) {
	allow := make([]string, 0, len(in.Route.Tiers)+1)
	seen := make(map[int64]bool, len(in.Route.Tiers))
	for _, tier := range in.Route.Tiers {
		if seen[tier] {
			continue
		}
		seen[tier] = true
		allow = append(allow, TierGroup(tier))
	}
	allow = append(allow, RouteGroup(in.Route.ID))

	return plugin.Desired{
		Name: NameACL,
		Config: map[string]interface{}{
			"allow":              allow,
			"hide_groups_header": true,
		},
		Enabled: true,
	}, nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
