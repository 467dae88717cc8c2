package httpapi

import (
	"strings"

	"rollbook.org/internal/auth"
)

// The route policy table. The gate middleware consults it before any store
// access; handlers never hardcode access rules inline. Longest matching
// prefix wins, so /v1/auth/signout can sit under the public /v1/auth/ space
// while still requiring a session.
type routePolicy struct {
	prefix string
	exact  bool
	policy auth.Policy
}

var routePolicies = []routePolicy{
	{prefix: "/", exact: true, policy: auth.PolicyPublic},
	{prefix: "/signin", exact: true, policy: auth.PolicyPublic},
	{prefix: "/signup", exact: true, policy: auth.PolicyPublic},
	{prefix: "/healthz", exact: true, policy: auth.PolicyPublic},
	{prefix: "/readyz", exact: true, policy: auth.PolicyPublic},
	{prefix: "/metrics", exact: true, policy: auth.PolicyPublic},
	{prefix: "/v1/info", exact: true, policy: auth.PolicyPublic},
	{prefix: "/assets/", policy: auth.PolicyPublic},

	{prefix: "/v1/auth/signup", exact: true, policy: auth.PolicyPublic},
	{prefix: "/v1/auth/signin", exact: true, policy: auth.PolicyPublic},
	{prefix: "/v1/auth/reset", policy: auth.PolicyPublic},

	{prefix: "/v1/auth/signout", exact: true, policy: auth.PolicyAuthenticated},
	{prefix: "/v1/auth/password", exact: true, policy: auth.PolicyAuthenticated},
	{prefix: "/v1/me", exact: true, policy: auth.PolicyAuthenticated},
	{prefix: "/portal/", policy: auth.PolicyAuthenticated},

	{prefix: "/admin/", policy: auth.PolicyAdminOnly},
	{prefix: "/v1/admin/", policy: auth.PolicyAdminOnly},
}

// PolicyForPath resolves the access policy for a request path. Unknown paths
// require authentication rather than defaulting open.
func PolicyForPath(path string) auth.Policy {
	best := auth.PolicyAuthenticated
	bestLen := -1
	for _, rp := range routePolicies {
		if rp.exact {
			if path == rp.prefix && len(rp.prefix) > bestLen {
				best = rp.policy
				bestLen = len(rp.prefix)
			}
			continue
		}
		if strings.HasPrefix(path, rp.prefix) && len(rp.prefix) > bestLen {
			best = rp.policy
			bestLen = len(rp.prefix)
		}
	}
	return best
}

// isAPIPath separates JSON endpoints from page routes; the former get status
// codes, the latter get redirects.
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/v1/") || path == "/metrics" || path == "/healthz" || path == "/readyz"
}
