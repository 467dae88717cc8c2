package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollbook.org/internal/ids"
)

const (
	defaultResetTTL = 30 * time.Minute
	resetPurpose    = "password_reset"
	resetIssuer     = "rollbook"
)

// ErrNotImplemented is returned for operations whose configuration is absent,
// e.g. reset tokens without a signing secret.
var ErrNotImplemented = errors.New("auth: not implemented")

// Service is the account surface built on the Store, the session Issuer and
// the authorization Gate. Role mutation goes through the same authoritative
// admin check as the HTTP gate; the actor's cached claim is never trusted.
type Service struct {
	store  Store
	issuer *Issuer
	gate   *Gate
	now    func() time.Time

	resetSecret []byte
	resetTTL    time.Duration
	mailer      ResetMailer
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithResetSecret enables password reset tokens signed with the secret.
func WithResetSecret(secret string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(secret) == "" {
			return nil
		}
		s.resetSecret = []byte(secret)
		return nil
	}
}

// WithResetTTL overrides the reset token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithResetMailer overrides the reset token delivery channel.
func WithResetMailer(m ResetMailer) ServiceOption {
	return func(s *Service) error {
		if m != nil {
			s.mailer = m
		}
		return nil
	}
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the account service.
func NewService(store Store, issuer *Issuer, gate *Gate, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	if gate == nil {
		return nil, errors.New("auth: gate is required")
	}
	svc := &Service{
		store:    store,
		issuer:   issuer,
		gate:     gate,
		now:      time.Now,
		resetTTL: defaultResetTTL,
		mailer:   LogResetMailer{},
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// NormalizeEmail applies the canonical form used at every write and read
// comparison: trimmed, lower-cased.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates a user with the default role and a password-bearing
// credential row. The two rows are written atomically; a store-level email
// conflict (two registrations racing past the pre-check) surfaces as
// ErrConflict, not as infrastructure failure.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user lookup: %v", ErrStoreUnavailable, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:        ids.New(),
		Email:     email,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	credential := &Credential{
		ID:           ids.New(),
		UserID:       user.ID,
		ProviderID:   ProviderCredential,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUserWithCredential(ctx, user, credential); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("%w: create account: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

// Login verifies the password credential and issues a session. Lookup and
// verification failures collapse into ErrUnauthenticated so the response does
// not reveal whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, *User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: email and password are required", ErrUnauthenticated)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown credentials", ErrUnauthenticated)
		}
		return nil, nil, fmt.Errorf("%w: %w: user lookup: %v", ErrUnauthenticated, ErrStoreUnavailable, err)
	}
	credential, err := s.store.GetCredentialByUserAndProvider(ctx, user.ID, ProviderCredential)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown credentials", ErrUnauthenticated)
		}
		return nil, nil, fmt.Errorf("%w: %w: credential lookup: %v", ErrUnauthenticated, ErrStoreUnavailable, err)
	}
	if err := VerifyPassword(credential.PasswordHash, password); err != nil {
		return nil, nil, fmt.Errorf("%w: unknown credentials", ErrUnauthenticated)
	}
	session, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Logout destroys the session behind the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.issuer.Logout(ctx, token)
}

// ChangePassword replaces the credential and revokes every session of the
// user, cached claims included.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	credential, err := s.store.GetCredentialByUserAndProvider(ctx, userID, ProviderCredential)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: no password credential", ErrNotFound)
		}
		return fmt.Errorf("%w: credential lookup: %v", ErrStoreUnavailable, err)
	}
	if err := VerifyPassword(credential.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: current password mismatch", ErrForbidden)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if _, err := s.store.ReplaceCredential(ctx, userID, ProviderCredential, hash); err != nil {
		return fmt.Errorf("%w: replace credential: %v", ErrStoreUnavailable, err)
	}
	return s.issuer.Revoke(ctx, userID)
}

// SetRole changes the target's role. The acting admin passes the same
// authoritative check the gate applies to privileged routes, the role value
// must parse from the closed enum before any store access, and every cached
// claim for the target is evicted so the next resolution re-reads
// authoritative state. Existing sessions stay valid; only the role changes.
func (s *Service) SetRole(ctx context.Context, actingAdminID, targetUserID, rawRole string) (*User, error) {
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: target user id is required", ErrInvalidInput)
	}
	if err := s.gate.VerifyAdmin(ctx, actingAdminID); err != nil {
		return nil, err
	}
	user, err := s.store.UpdateRole(ctx, targetUserID, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: target user", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: update role: %v", ErrStoreUnavailable, err)
	}
	s.issuer.EvictClaims(ctx, targetUserID)
	return user, nil
}

// AddStrike increments the target's strike counter. Admin-gated like SetRole.
func (s *Service) AddStrike(ctx context.Context, actingAdminID, targetUserID string) (*User, error) {
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: target user id is required", ErrInvalidInput)
	}
	if err := s.gate.VerifyAdmin(ctx, actingAdminID); err != nil {
		return nil, err
	}
	user, err := s.store.UpdateStrikes(ctx, targetUserID, 1)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: target user", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: update strikes: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

// GetUser returns the user projection for an admitted identity.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: user lookup: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// RequestReset mints a short-lived signed token for a password reset and
// hands it to the mailer. The token never flows back to the caller: the
// reset route is public, so returning it would let anyone who knows an email
// address take over the account behind it.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	if len(s.resetSecret) == 0 {
		return ErrNotImplemented
	}
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: user lookup: %v", ErrStoreUnavailable, err)
	}

	now := s.now().UTC()
	claims := resetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    resetIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.resetTTL)),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.resetSecret)
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}
	if err := s.mailer.SendResetToken(ctx, user.Email, signed); err != nil {
		return fmt.Errorf("deliver reset token: %w", err)
	}
	return nil
}

// CompleteReset validates a reset token, replaces the password credential and
// revokes every session of the user.
func (s *Service) CompleteReset(ctx context.Context, token, newPassword string) error {
	if len(s.resetSecret) == 0 {
		return ErrNotImplemented
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &resetClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: unexpected signing method", ErrInvalidInput)
		}
		return s.resetSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(resetIssuer))
	if err != nil {
		return fmt.Errorf("%w: invalid reset token", ErrUnauthenticated)
	}
	claims, ok := parsed.Claims.(*resetClaims)
	if !ok || !parsed.Valid || claims.Purpose != resetPurpose || claims.Subject == "" {
		return fmt.Errorf("%w: invalid reset token", ErrUnauthenticated)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.store.ReplaceCredential(ctx, claims.Subject, ProviderCredential, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: no password credential", ErrNotFound)
		}
		return fmt.Errorf("%w: replace credential: %v", ErrStoreUnavailable, err)
	}
	return s.issuer.Revoke(ctx, claims.Subject)
}
