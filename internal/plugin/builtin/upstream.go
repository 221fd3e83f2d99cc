package builtin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// upstreamParam matches a ":name" parameter opening a path segment; the rest
// of the segment stays literal.
var upstreamParam = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)(.*)$`)

// SplitUpstream splits an upstream URL such as
// https://api.example.com/v1/users/:id into the service URL up to the first
// path parameter (https://api.example.com/v1/users) and, when the path has
// parameters, the rewritten upstream URI filled from the downstream regex
// captures (/v1/users/$(uri_captures.id)).
func SplitUpstream(raw string) (serviceURL, uriTemplate string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid upstream URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("upstream URL %q must be absolute", raw)
	}

	segments := strings.Split(u.Path, "/")
	first := -1
	for i, seg := range segments {
		m := upstreamParam.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		segments[i] = "$(uri_captures." + m[1] + ")" + m[2]
	}

	base := u.Scheme + "://" + u.Host
	if first < 0 {
		return base + u.Path, "", nil
	}
	return base + strings.Join(segments[:first], "/"), strings.Join(segments, "/"), nil
}
