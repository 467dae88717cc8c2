package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rollbook.org/internal/auth"
	"rollbook.org/internal/obs"
)

const (
	sessionCookie = "rollbook_session"
	authHeader    = "Authorization"
	bearerScheme  = "Bearer "

	signInLocation = "/signin"
	deniedLocation = "/"
)

// withGate applies the route policy table and the authorization gate to every
// request. Denials on page routes redirect to a neutral location; API routes
// get a JSON status. The response never distinguishes a role failure from an
// authentication failure beyond the status code the policy requires.
func (a *API) withGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		policy := PolicyForPath(r.URL.Path)
		token := sessionToken(r)

		identity, err := a.gate.Authorize(r.Context(), token, policy)
		if err != nil {
			a.deny(w, r, policy, err)
			return
		}
		obs.AuthzDecision(string(policy), "allow")

		ctx := r.Context()
		if identity.UserID != "" {
			ctx = auth.ContextWithIdentity(ctx, identity)
			ctx = auth.ContextWithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) deny(w http.ResponseWriter, r *http.Request, policy auth.Policy, err error) {
	// Store trouble is an operational event; the response stays a plain
	// denial either way.
	if errors.Is(err, auth.ErrStoreUnavailable) {
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "authorization store failure",
			"path":       r.URL.Path,
			"request_id": RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
	}

	forbidden := errors.Is(err, auth.ErrForbidden)
	if forbidden {
		obs.AuthzDecision(string(policy), "deny")
	} else {
		obs.AuthzDecision(string(policy), "unauthenticated")
	}

	if isAPIPath(r.URL.Path) {
		if forbidden {
			writeError(w, r, http.StatusForbidden, "access denied")
			return
		}
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if forbidden {
		http.Redirect(w, r, deniedLocation, http.StatusFound)
		return
	}
	http.Redirect(w, r, signInLocation, http.StatusFound)
}

// sessionToken extracts the bearer secret from the session cookie or the
// Authorization header. The gate treats it opaquely.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}
