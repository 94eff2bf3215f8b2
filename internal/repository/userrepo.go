// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/jimei-edu/authsvc/internal/model"
)

// UserRepository provides persistence for user accounts. Uniqueness of
// username and email is enforced by the storage layer; the existence checks
// exist for better error messages, not correctness.
type UserRepository interface {
	// Create inserts a new user. Unique violations map to
	// errs.ErrUsernameTaken / errs.ErrEmailTaken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UsernameExists reports whether the username is already registered.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// EmailExists reports whether any user owns the email.
	EmailExists(ctx context.Context, email string) (bool, error)
	// EmailTakenByOther reports whether a user other than id owns the email.
	EmailTakenByOther(ctx context.Context, email string, id uuid.UUID) (bool, error)
	// UpdateProfile persists email and avatar for an existing user.
	UpdateProfile(ctx context.Context, u *model.User) error
	// UpdatePassword replaces the stored password hash and salt.
	UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error
}
