package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of membership roles. Free-form strings never reach
// the store: every inbound value passes through ParseRole first.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes and validates a role value from an untrusted boundary.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

func (r Role) String() string { return string(r) }

// RoleInfo is the authoritative role projection read directly from the store
// at decision time. SuperAdmin is an orthogonal elevated flag that also
// satisfies admin-only policies.
type RoleInfo struct {
	Role       Role
	SuperAdmin bool
}

// Elevated reports whether the authoritative record admits privileged
// operations.
func (ri RoleInfo) Elevated() bool {
	return ri.Role == RoleAdmin || ri.SuperAdmin
}
