package auth

import "time"

// User is the authoritative identity record. Role transitions are
// admin-initiated only; nothing on the self-service surface writes Role.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	SuperAdmin    bool      `json:"super_admin"`
	EmailVerified bool      `json:"email_verified"`
	Strikes       int       `json:"strikes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Provider discriminates credential kinds. Only ProviderCredential carries a
// password hash.
const ProviderCredential = "credential"

// Credential links a login method to a user. Password resets replace the row
// rather than mutating it.
type Credential struct {
	ID           string
	UserID       string
	ProviderID   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted bearer-token session. UserID never changes for the
// lifetime of the row; an expired session must not authorize anything even if
// it has not been physically deleted yet.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claim is the ephemeral (userID, role) projection cached per token. It is
// advisory: privileged decisions never rest on it alone.
type Claim struct {
	UserID string
	Role   Role
}
