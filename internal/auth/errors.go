package auth

import "errors"

var (
	// ErrUnauthenticated covers missing, malformed and expired session tokens.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden means the identity is known but its authoritative role is
	// insufficient for the requested operation.
	ErrForbidden = errors.New("auth: forbidden")
	ErrNotFound  = errors.New("auth: not found")
	ErrConflict  = errors.New("auth: already exists")
	// ErrInvalidInput is rejected before any store access.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrStoreUnavailable marks transient credential store failures; decisions
	// built on top of it always fail closed.
	ErrStoreUnavailable = errors.New("auth: store unavailable")
	// ErrHashingUnavailable is returned when the password hasher cannot run,
	// e.g. the salt source fails. Never substituted with a fixed hash.
	ErrHashingUnavailable = errors.New("auth: hashing unavailable")
)
