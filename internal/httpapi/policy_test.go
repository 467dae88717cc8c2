package httpapi

import (
	"testing"

	"rollbook.org/internal/auth"
)

func TestPolicyForPath(t *testing.T) {
	cases := []struct {
		path string
		want auth.Policy
	}{
		{"/", auth.PolicyPublic},
		{"/signin", auth.PolicyPublic},
		{"/signup", auth.PolicyPublic},
		{"/healthz", auth.PolicyPublic},
		{"/metrics", auth.PolicyPublic},
		{"/v1/info", auth.PolicyPublic},
		{"/assets/app.css", auth.PolicyPublic},
		{"/v1/auth/signup", auth.PolicyPublic},
		{"/v1/auth/signin", auth.PolicyPublic},
		{"/v1/auth/reset", auth.PolicyPublic},
		{"/v1/auth/reset/complete", auth.PolicyPublic},

		{"/v1/auth/signout", auth.PolicyAuthenticated},
		{"/v1/auth/password", auth.PolicyAuthenticated},
		{"/v1/me", auth.PolicyAuthenticated},
		{"/portal/attendance", auth.PolicyAuthenticated},

		{"/admin/", auth.PolicyAdminOnly},
		{"/admin/members", auth.PolicyAdminOnly},
		{"/v1/admin/users/u1/role", auth.PolicyAdminOnly},

		// Unknown paths require authentication, never default open.
		{"/v1/unknown", auth.PolicyAuthenticated},
		{"/totally/unmapped", auth.PolicyAuthenticated},
		{"/signin/extra", auth.PolicyAuthenticated},
	}
	for _, tc := range cases {
		if got := PolicyForPath(tc.path); got != tc.want {
			t.Errorf("PolicyForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsAPIPath(t *testing.T) {
	for path, want := range map[string]bool{
		"/v1/me":   true,
		"/v1/info": true,
		"/healthz": true,
		"/metrics": true,
		"/portal/": false,
		"/admin/":  false,
		"/signin":  false,
		"/":        false,
	} {
		if got := isAPIPath(path); got != want {
			t.Errorf("isAPIPath(%q) = %v, want %v", path, got, want)
		}
	}
}
