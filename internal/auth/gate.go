package auth

import (
	"context"
	"errors"
	"fmt"

	"rollbook.org/internal/obs"
)

// Policy is the access requirement attached to a route prefix.
type Policy string

const (
	// PolicyPublic always admits, regardless of session state.
	PolicyPublic Policy = "public"
	// PolicyAuthenticated admits any resolved session.
	PolicyAuthenticated Policy = "authenticated"
	// PolicyAdminOnly admits only after an authoritative role re-read.
	PolicyAdminOnly Policy = "admin_only"
)

// Identity is the admitted request identity. For admin-only decisions Role
// carries the authoritative value, not the cached hint.
type Identity struct {
	UserID string
	Role   Role
}

// Gate is the request-time authorization decision function. The cached claim
// produced by Resolve is only ever a hint: privileged admissions pay one
// fresh store read for the authoritative role, which closes the window where
// a role was downgraded after the claim was cached.
type Gate struct {
	issuer *Issuer
	store  Store
}

func NewGate(issuer *Issuer, store Store) (*Gate, error) {
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &Gate{issuer: issuer, store: store}, nil
}

// Authorize decides admission for a token under a route policy. The decision
// is deterministic in (token, policy, authoritative role, current time) and
// fails closed on any store trouble.
func (g *Gate) Authorize(ctx context.Context, token string, policy Policy) (Identity, error) {
	if policy == PolicyPublic {
		return Identity{}, nil
	}

	claim, err := g.issuer.Resolve(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if policy == PolicyAuthenticated {
		return Identity{UserID: claim.UserID, Role: claim.Role}, nil
	}

	// Admin-only: the claim's role is advisory. Re-read the authoritative
	// role; it wins in both directions.
	info, err := g.store.GetRoleByID(ctx, claim.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: user missing", ErrUnauthenticated)
		}
		obs.StoreFailure("get_role")
		return Identity{}, fmt.Errorf("%w: %w: authoritative role read: %v", ErrForbidden, ErrStoreUnavailable, err)
	}
	if !info.Elevated() {
		return Identity{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return Identity{UserID: claim.UserID, Role: info.Role}, nil
}

// VerifyAdmin runs the same authoritative admin check for a known user id.
// The role mutation path uses it on the acting admin, so an actor's stale
// cached claim can never authorize a role change.
func (g *Gate) VerifyAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	info, err := g.store.GetRoleByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user missing", ErrUnauthenticated)
		}
		obs.StoreFailure("get_role")
		return fmt.Errorf("%w: %w: authoritative role read: %v", ErrForbidden, ErrStoreUnavailable, err)
	}
	if !info.Elevated() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}
