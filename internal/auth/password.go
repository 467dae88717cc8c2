package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hash policy. Parameters are pinned here and nowhere else; callers never
// choose costs per call, so every hash written by this build verifies under
// the same cost settings.
const (
	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var errPasswordMismatch = errors.New("auth: password mismatch")

// HashPassword hashes a plaintext password with argon2id and returns it in
// PHC string format. The algorithm tag embedded in the string is what lets
// VerifyPassword keep accepting hashes produced under older policies.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: generate salt: %v", ErrHashingUnavailable, err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks plaintext against a stored hash. The stored algorithm
// tag selects the scheme: argon2id for current hashes, bcrypt for legacy rows
// still inside the migration window. Comparison time does not depend on where
// a mismatch occurs.
func VerifyPassword(stored, password string) error {
	if stored == "" {
		return fmt.Errorf("%w: password hash is empty", ErrInvalidInput)
	}
	switch {
	case strings.HasPrefix(stored, "$argon2id$"):
		return verifyArgon2id(stored, password)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
			return errPasswordMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported hash algorithm", ErrInvalidInput)
	}
}

// verifyArgon2id recomputes the key with the parameters recorded in the PHC
// string, not the current policy, so parameter bumps do not invalidate old
// hashes.
func verifyArgon2id(stored, password string) error {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 {
		return fmt.Errorf("%w: malformed argon2id hash", ErrInvalidInput)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return fmt.Errorf("%w: unsupported argon2 version", ErrInvalidInput)
	}
	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return fmt.Errorf("%w: malformed argon2id parameters", ErrInvalidInput)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: malformed argon2id salt", ErrInvalidInput)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: malformed argon2id hash", ErrInvalidInput)
	}
	got := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errPasswordMismatch
	}
	return nil
}
