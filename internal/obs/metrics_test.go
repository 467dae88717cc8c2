package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                   "/",
		"/metrics":                           "/metrics",
		"/v1/me":                             "/v1/me",
		"/v1/admin/users/abc/role":           "/v1/admin/users/:id/role",
		"/v1/admin/users/abc/strikes":        "/v1/admin/users/:id/strikes",
		"/v1/admin/users/abc/role/extra":     "/v1/admin/users/abc/role/extra",
		"/v1/auth/signin":                    "/v1/auth/signin",
		"/v1/auth/signin?redirect=%2Fportal": "/v1/auth/signin",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
