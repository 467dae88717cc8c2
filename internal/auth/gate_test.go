package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestGate(t *testing.T, clock func() time.Time) (*Gate, *Issuer, *countingStore) {
	t.Helper()
	issuer, store, _ := newTestIssuer(t, clock)
	gate, err := NewGate(issuer, store)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return gate, issuer, store
}

func loginAs(t *testing.T, issuer *Issuer, userID string) string {
	t.Helper()
	session, err := issuer.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return session.Token
}

func TestAuthorizePublicSkipsStore(t *testing.T) {
	now := time.Now()
	gate, _, store := newTestGate(t, func() time.Time { return now })

	identity, err := gate.Authorize(context.Background(), "", PolicyPublic)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if identity.UserID != "" {
		t.Fatalf("public admission carries no identity, got %+v", identity)
	}
	if store.sessionReads != 0 || store.roleReads != 0 {
		t.Fatal("public routes must not touch the store")
	}
}

func TestAuthorizeAuthenticated(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	user := seedUser(t, store, "a@example.com", RoleUser)
	token := loginAs(t, issuer, user.ID)

	identity, err := gate.Authorize(context.Background(), token, PolicyAuthenticated)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if identity.UserID != user.ID || identity.Role != RoleUser {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if _, err := gate.Authorize(context.Background(), "", PolicyAuthenticated); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("missing token must deny, got %v", err)
	}
}

func TestAuthorizeAdminOnlyRejectsUser(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	user := seedUser(t, store, "a@example.com", RoleUser)
	token := loginAs(t, issuer, user.ID)

	_, err := gate.Authorize(context.Background(), token, PolicyAdminOnly)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("authenticated non-admin is forbidden, not unauthenticated")
	}
}

func TestAuthorizeAdminOnlyAdmitsAdmin(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	admin := seedUser(t, store, "root@example.com", RoleAdmin)
	token := loginAs(t, issuer, admin.ID)

	identity, err := gate.Authorize(context.Background(), token, PolicyAdminOnly)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if identity.Role != RoleAdmin {
		t.Fatalf("expected admin identity, got %+v", identity)
	}
}

func TestAuthorizeStaleAdminClaimCannotAdmit(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	admin := seedUser(t, store, "root@example.com", RoleAdmin)
	token := loginAs(t, issuer, admin.ID)

	// Warm the cache while the user is still an admin.
	if _, err := gate.Authorize(context.Background(), token, PolicyAdminOnly); err != nil {
		t.Fatalf("Authorize before demotion: %v", err)
	}

	// Demote directly in the store, without evicting the cached claim.
	if _, err := store.Store.UpdateRole(context.Background(), admin.ID, RoleUser); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	_, err := gate.Authorize(context.Background(), token, PolicyAdminOnly)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("stale cached admin claim must not admit, got %v", err)
	}
}

func TestAuthorizePromotionVisibleImmediately(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	user := seedUser(t, store, "a@example.com", RoleUser)
	token := loginAs(t, issuer, user.ID)

	// Cache a non-admin claim, then promote in the store.
	if _, err := gate.Authorize(context.Background(), token, PolicyAuthenticated); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if _, err := store.Store.UpdateRole(context.Background(), user.ID, RoleAdmin); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	// The authoritative re-read wins in both directions.
	identity, err := gate.Authorize(context.Background(), token, PolicyAdminOnly)
	if err != nil {
		t.Fatalf("Authorize after promotion: %v", err)
	}
	if identity.Role != RoleAdmin {
		t.Fatalf("expected authoritative admin role, got %+v", identity)
	}
}

func TestAuthorizeSuperAdminFlagAdmits(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	user := &User{Email: "op@example.com", Role: RoleUser, SuperAdmin: true}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token := loginAs(t, issuer, user.ID)

	if _, err := gate.Authorize(context.Background(), token, PolicyAdminOnly); err != nil {
		t.Fatalf("super admin flag should admit: %v", err)
	}
}

func TestAuthorizeAdminOnlyFailsClosedOnStoreError(t *testing.T) {
	now := time.Now()
	gate, issuer, store := newTestGate(t, func() time.Time { return now })
	admin := seedUser(t, store, "root@example.com", RoleAdmin)
	token := loginAs(t, issuer, admin.ID)

	// Warm the cache so Resolve does not touch the store, then break the
	// authoritative role read.
	if _, err := issuer.Resolve(context.Background(), token); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	store.errs["get_role"] = errors.New("connection refused")

	_, err := gate.Authorize(context.Background(), token, PolicyAdminOnly)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("store failure on privileged decision must deny, got %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("cause should be reported as store unavailability, got %v", err)
	}
}

func TestVerifyAdmin(t *testing.T) {
	now := time.Now()
	gate, _, store := newTestGate(t, func() time.Time { return now })
	admin := seedUser(t, store, "root@example.com", RoleAdmin)
	user := seedUser(t, store, "a@example.com", RoleUser)

	if err := gate.VerifyAdmin(context.Background(), admin.ID); err != nil {
		t.Fatalf("VerifyAdmin(admin): %v", err)
	}
	if err := gate.VerifyAdmin(context.Background(), user.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := gate.VerifyAdmin(context.Background(), "missing"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown user, got %v", err)
	}
	if err := gate.VerifyAdmin(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
