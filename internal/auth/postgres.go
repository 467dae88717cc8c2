package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rollbook.org/internal/ids"
)

// Postgres unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// OpenPG opens a pooled connection using the pgx stdlib driver.
func OpenPG(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

const userColumns = `id, email, role, super_admin, email_verified, strikes, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.SuperAdmin, &u.EmailVerified, &u.Strikes, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, role, super_admin, email_verified, strikes)
		 values($1, lower(trim($2)), $3, $4, $5, $6)`,
		u.ID, u.Email, u.Role, u.SuperAdmin, u.EmailVerified, u.Strikes,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// CreateUserWithCredential writes both rows in one transaction; a losing
// racer on the email unique index gets ErrConflict, not a stranded user row.
func (s *PGStore) CreateUserWithCredential(ctx context.Context, u *User, c *Credential) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.UserID = u.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`insert into users(id, email, role, super_admin, email_verified, strikes)
		 values($1, lower(trim($2)), $3, $4, $5, $6)`,
		u.ID, u.Email, u.Role, u.SuperAdmin, u.EmailVerified, u.Strikes,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`insert into credentials(id, user_id, provider_id, password_hash) values($1,$2,$3,$4)`,
		c.ID, c.UserID, c.ProviderID, c.PasswordHash,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=lower(trim($1))`, email))
}

func (s *PGStore) GetRoleByID(ctx context.Context, userID string) (RoleInfo, error) {
	var info RoleInfo
	err := s.db.QueryRowContext(ctx,
		`select role, super_admin from users where id=$1`, userID,
	).Scan(&info.Role, &info.SuperAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleInfo{}, ErrNotFound
	}
	if err != nil {
		return RoleInfo{}, err
	}
	return info, nil
}

func (s *PGStore) UpdateRole(ctx context.Context, userID string, role Role) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`update users set role=$2, updated_at=now() where id=$1 returning `+userColumns, userID, role))
}

func (s *PGStore) UpdateStrikes(ctx context.Context, userID string, delta int) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`update users set strikes=greatest(strikes+$2, 0), updated_at=now() where id=$1 returning `+userColumns,
		userID, delta))
}

func (s *PGStore) GetCredentialByUserAndProvider(ctx context.Context, userID, providerID string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, provider_id, password_hash, created_at, updated_at
		 from credentials where user_id=$1 and provider_id=$2`, userID, providerID)
	var c Credential
	err := row.Scan(&c.ID, &c.UserID, &c.ProviderID, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ReplaceCredential deletes the old password-bearing row and inserts a fresh
// one in a single transaction, keeping at most one authoritative credential
// per (user, provider).
func (s *PGStore) ReplaceCredential(ctx context.Context, userID, providerID, passwordHash string) (*Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`delete from credentials where user_id=$1 and provider_id=$2`, userID, providerID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	c := &Credential{
		ID:         ids.New(),
		UserID:     userID,
		ProviderID: providerID,
	}
	err = tx.QueryRowContext(ctx,
		`insert into credentials(id, user_id, provider_id, password_hash)
		 values($1,$2,$3,$4) returning password_hash, created_at, updated_at`,
		c.ID, c.UserID, c.ProviderID, passwordHash,
	).Scan(&c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PGStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, token, user_id, expires_at) values($1,$2,$3,$4)`,
		sess.ID, sess.Token, sess.UserID, sess.ExpiresAt,
	)
	return err
}

func (s *PGStore) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, token, user_id, expires_at, created_at, updated_at from sessions where token=$1`, token)
	var sess Session
	err := row.Scan(&sess.ID, &sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PGStore) DeleteSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id=$1`, userID)
	return err
}
