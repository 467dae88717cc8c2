package httpapi

import (
	"net/http"
	"strings"

	"rollbook.org/internal/audit"
	"rollbook.org/internal/auth"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

// handleAdminUserResource dispatches /v1/admin/users/{id}/role and
// /v1/admin/users/{id}/strikes. The gate middleware has already performed the
// authoritative admin check for the /v1/admin/ prefix; the service repeats it
// for the acting identity on every mutation.
func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch parts[1] {
	case "role":
		a.handleUpdateRole(w, r, userID)
	case "strikes":
		a.handleAddStrike(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request, targetUserID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.accounts.SetRole(r.Context(), identity.UserID, targetUserID, req.Role)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.role.updated", map[string]any{
		"target_id": user.ID,
		"role":      user.Role.String(),
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleAddStrike(w http.ResponseWriter, r *http.Request, targetUserID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := a.accounts.AddStrike(r.Context(), identity.UserID, targetUserID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.strike.added", map[string]any{
		"target_id": user.ID,
		"strikes":   user.Strikes,
	})
	writeJSON(w, http.StatusOK, user)
}
