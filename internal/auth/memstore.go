package auth

import (
	"context"
	"sync"
	"time"

	"rollbook.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store over process memory. It backs tests and local
// development without a database; production wiring uses PGStore.
type MemStore struct {
	mu          sync.Mutex
	users       map[string]*User
	emailIndex  map[string]string
	credentials map[string]*Credential // keyed userID+"/"+providerID
	sessions    map[string]*Session    // keyed by token
	now         func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[string]*User),
		emailIndex:  make(map[string]string),
		credentials: make(map[string]*Credential),
		sessions:    make(map[string]*Session),
		now:         time.Now,
	}
}

func credentialKey(userID, providerID string) string { return userID + "/" + providerID }

func (s *MemStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	email := NormalizeEmail(u.Email)
	if _, ok := s.emailIndex[email]; ok {
		return ErrConflict
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Email = email
	copied := *u
	s.users[u.ID] = &copied
	s.emailIndex[email] = u.ID
	return nil
}

func (s *MemStore) GetUserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emailIndex[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *MemStore) GetRoleByID(_ context.Context, userID string) (RoleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return RoleInfo{}, ErrNotFound
	}
	return RoleInfo{Role: u.Role, SuperAdmin: u.SuperAdmin}, nil
}

func (s *MemStore) UpdateRole(_ context.Context, userID string, role Role) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	copied := *u
	return &copied, nil
}

func (s *MemStore) UpdateStrikes(_ context.Context, userID string, delta int) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.Strikes += delta
	if u.Strikes < 0 {
		u.Strikes = 0
	}
	u.UpdatedAt = s.now().UTC()
	copied := *u
	return &copied, nil
}

func (s *MemStore) CreateUserWithCredential(_ context.Context, u *User, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.UserID = u.ID
	email := NormalizeEmail(u.Email)
	if _, ok := s.emailIndex[email]; ok {
		return ErrConflict
	}
	key := credentialKey(c.UserID, c.ProviderID)
	if _, ok := s.credentials[key]; ok {
		return ErrConflict
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Email = email
	copiedUser := *u
	copiedCred := *c
	s.users[u.ID] = &copiedUser
	s.emailIndex[email] = u.ID
	s.credentials[key] = &copiedCred
	return nil
}

func (s *MemStore) GetCredentialByUserAndProvider(_ context.Context, userID, providerID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[credentialKey(userID, providerID)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *MemStore) ReplaceCredential(_ context.Context, userID, providerID, passwordHash string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credentialKey(userID, providerID)
	if _, ok := s.credentials[key]; !ok {
		return nil, ErrNotFound
	}
	now := s.now().UTC()
	c := &Credential{
		ID:           ids.New(),
		UserID:       userID,
		ProviderID:   providerID,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.credentials[key] = c
	copied := *c
	return &copied, nil
}

func (s *MemStore) CreateSession(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	if _, ok := s.sessions[sess.Token]; ok {
		return ErrConflict
	}
	copied := *sess
	s.sessions[sess.Token] = &copied
	return nil
}

func (s *MemStore) GetSessionByToken(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *MemStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *MemStore) DeleteSessionsByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

// SessionCount reports live sessions for a user; tests assert revocation
// through it.
func (s *MemStore) SessionCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			count++
		}
	}
	return count
}
