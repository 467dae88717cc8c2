package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the authorization core.
// Every lookup returns ErrNotFound on absence; implementations never panic on
// missing rows.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetRoleByID is the authoritative role read used by privileged
	// decisions. Implementations must hit the store directly; the result is
	// never cached.
	GetRoleByID(ctx context.Context, userID string) (RoleInfo, error)
	UpdateRole(ctx context.Context, userID string, role Role) (*User, error)
	UpdateStrikes(ctx context.Context, userID string, delta int) (*User, error)

	// CreateUserWithCredential writes the user and its password-bearing
	// credential atomically, so a failed credential write never strands a
	// credential-less user row. Email uniqueness violations surface as
	// ErrConflict.
	CreateUserWithCredential(ctx context.Context, u *User, c *Credential) error
	GetCredentialByUserAndProvider(ctx context.Context, userID, providerID string) (*Credential, error)
	// ReplaceCredential swaps the password-bearing credential for a user in a
	// single transaction; used by password change and reset.
	ReplaceCredential(ctx context.Context, userID, providerID, passwordHash string) (*Credential, error)

	CreateSession(ctx context.Context, s *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
}

// ClaimCache is the short-lived advisory projection of session claims. Writes
// are idempotent: concurrent resolvers for the same token may both populate
// the same value and last-writer-wins is safe because the claim is derived,
// not authoritative.
type ClaimCache interface {
	Get(ctx context.Context, token string) (Claim, bool)
	Set(ctx context.Context, token string, claim Claim, ttl time.Duration)
	EvictToken(ctx context.Context, token string)
	EvictUser(ctx context.Context, userID string)
}
