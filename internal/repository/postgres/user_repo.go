package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/jimei-edu/authsvc/internal/errs"
	"github.com/jimei-edu/authsvc/internal/model"
)

// Constraint names from the users migration. Email uses a partial unique
// index so absent (NULL) emails never collide.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row. Empty email is stored as NULL.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, email, avatar_url, role, pwd_hash, salt_auth)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.Email, u.AvatarURL, string(u.Role), u.PwdHash, u.SaltAuth)
	if name, ok := uniqueViolation(err); ok {
		if name == emailConstraint {
			return errs.ErrEmailTaken
		}
		return errs.ErrUsernameTaken
	}
	return err
}

const userColumns = `id, username, COALESCE(email, ''), COALESCE(avatar_url, ''), role, pwd_hash, salt_auth, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &role, &u.PwdHash, &u.SaltAuth, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		// transient failures (connection errors, cancellation) pass through
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users WHERE username=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

// UsernameExists checks whether a username is already registered.
func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username=$1)`
	var exists bool
	err := r.db.Pool.QueryRow(ctx, q, username).Scan(&exists)
	return exists, err
}

// EmailExists checks whether any user owns the email.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`
	var exists bool
	err := r.db.Pool.QueryRow(ctx, q, email).Scan(&exists)
	return exists, err
}

// EmailTakenByOther checks whether a different user owns the email.
func (r *UserRepo) EmailTakenByOther(ctx context.Context, email string, id uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND id<>$2)`
	var exists bool
	err := r.db.Pool.QueryRow(ctx, q, email, id).Scan(&exists)
	return exists, err
}

// UpdateProfile persists the user's email and avatar URL.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET email = NULLIF($2, ''), avatar_url = $3
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.AvatarURL)
	if name, ok := uniqueViolation(err); ok && name == emailConstraint {
		return errs.ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash and salt.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error {
	const q = `
UPDATE users
SET pwd_hash = $2, salt_auth = $3
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, pwdHash, saltAuth)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
