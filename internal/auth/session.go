package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"rollbook.org/internal/ids"
	"rollbook.org/internal/obs"
)

const (
	defaultSessionTTL = 14 * 24 * time.Hour
	defaultClaimTTL   = 5 * time.Minute

	// 32 bytes of entropy, base64url without padding.
	tokenRawLength     = 32
	tokenEncodedLength = 43
)

// Issuer creates, resolves and revokes bearer-token sessions. Resolution goes
// through the claim cache first and falls back to the store; the populated
// claim always carries a TTL strictly shorter than the remaining session
// lifetime, which bounds how long a stale role can survive a failed eviction.
type Issuer struct {
	store      Store
	cache      ClaimCache
	now        func() time.Time
	sessionTTL time.Duration
	claimTTL   time.Duration
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer) error

// WithSessionTTL overrides the session lifetime policy.
func WithSessionTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl <= 0 {
			return errors.New("auth: session ttl must be positive")
		}
		i.sessionTTL = ttl
		return nil
	}
}

// WithClaimTTL overrides the cached claim lifetime.
func WithClaimTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl <= 0 {
			return errors.New("auth: claim ttl must be positive")
		}
		i.claimTTL = ttl
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer over the given store and claim cache.
func NewIssuer(store Store, cache ClaimCache, opts ...IssuerOption) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if cache == nil {
		return nil, errors.New("auth: claim cache is required")
	}
	issuer := &Issuer{
		store:      store,
		cache:      cache,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
		claimTTL:   defaultClaimTTL,
	}
	for _, opt := range opts {
		if err := opt(issuer); err != nil {
			return nil, err
		}
	}
	return issuer, nil
}

// Issue creates and persists a session for the user.
func (i *Issuer) Issue(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := i.now().UTC()
	session := &Session{
		ID:        ids.New(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(i.sessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := i.store.CreateSession(ctx, session); err != nil {
		obs.StoreFailure("create_session")
		return nil, fmt.Errorf("%w: create session: %v", ErrStoreUnavailable, err)
	}
	return session, nil
}

// Resolve maps a bearer token to its cached or freshly loaded claim. Any
// store failure resolves to ErrUnauthenticated: the decision fails closed and
// the cause stays attached for logging.
func (i *Issuer) Resolve(ctx context.Context, token string) (Claim, error) {
	if !validTokenShape(token) {
		return Claim{}, fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	}
	if claim, ok := i.cache.Get(ctx, token); ok {
		obs.ClaimCacheHit()
		return claim, nil
	}
	obs.ClaimCacheMiss()

	session, err := i.store.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Claim{}, fmt.Errorf("%w: unknown token", ErrUnauthenticated)
		}
		obs.StoreFailure("get_session")
		return Claim{}, fmt.Errorf("%w: %w: session lookup: %v", ErrUnauthenticated, ErrStoreUnavailable, err)
	}

	now := i.now()
	// A boundary-equal timestamp counts as expired.
	if !now.Before(session.ExpiresAt) {
		return Claim{}, fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}

	info, err := i.store.GetRoleByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Claim{}, fmt.Errorf("%w: session owner missing", ErrUnauthenticated)
		}
		obs.StoreFailure("get_role")
		return Claim{}, fmt.Errorf("%w: %w: role lookup: %v", ErrUnauthenticated, ErrStoreUnavailable, err)
	}

	claim := Claim{UserID: session.UserID, Role: info.Role}
	// The claim must die before the session does; halving the remainder keeps
	// the invariant when the session is about to expire.
	ttl := i.claimTTL
	if remaining := session.ExpiresAt.Sub(now); ttl >= remaining {
		ttl = remaining / 2
	}
	i.cache.Set(ctx, token, claim, ttl)
	return claim, nil
}

// Revoke destroys all sessions for a user and evicts their cached claims.
// Used on password change and credential cleanup. The cache eviction runs
// even when the store delete fails; the claim TTL bounds any residue.
func (i *Issuer) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	err := i.store.DeleteSessionsByUser(ctx, userID)
	i.cache.EvictUser(ctx, userID)
	if err != nil {
		obs.StoreFailure("delete_sessions")
		return fmt.Errorf("%w: delete sessions: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Logout destroys a single session by token.
func (i *Issuer) Logout(ctx context.Context, token string) error {
	if !validTokenShape(token) {
		return fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	}
	err := i.store.DeleteSession(ctx, token)
	i.cache.EvictToken(ctx, token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		obs.StoreFailure("delete_session")
		return fmt.Errorf("%w: delete session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// EvictClaims drops every cached claim for the user without touching the
// persisted sessions; the role mutation path uses it so the next resolution
// re-reads authoritative state.
func (i *Issuer) EvictClaims(ctx context.Context, userID string) {
	i.cache.EvictUser(ctx, userID)
}

func newSessionToken() (string, error) {
	raw := make([]byte, tokenRawLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// validTokenShape rejects malformed tokens before any store access.
func validTokenShape(token string) bool {
	if len(token) != tokenEncodedLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}
