// Package service contains application services for accounts and upload grants.
package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/jimei-edu/authsvc/internal/crypto"
	"github.com/jimei-edu/authsvc/internal/errs"
	"github.com/jimei-edu/authsvc/internal/model"
	"github.com/jimei-edu/authsvc/internal/repository"
	"github.com/jimei-edu/authsvc/internal/token"
)

// AccountService defines account management and authentication operations.
type AccountService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// Login authenticates the user and issues an access token.
	Login(ctx context.Context, username, password string) (model.Tokens, model.User, error)
	// GetUser loads a user by ID.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	// UsernameAvailable reports whether a username is free to register.
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	// EmailAvailable reports whether an email is free to register.
	EmailAvailable(ctx context.Context, email string) (bool, error)
	// UpdateProfile applies the provided fields, leaving blank ones unchanged.
	UpdateProfile(ctx context.Context, id uuid.UUID, email, avatarURL string) (*model.User, error)
	// ChangePassword verifies the current password and stores a new hash.
	ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword, confirm string) error
}

// RegisterInput collects registration parameters. Email and Role are optional.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
	Role            model.Role
}

type AccountServiceImpl struct {
	users repository.UserRepository
	codec *token.Codec
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(users repository.UserRepository, codec *token.Codec) *AccountServiceImpl {
	return &AccountServiceImpl{users: users, codec: codec}
}

// Register creates a new user record. Checks run in a fixed order: password
// confirmation first (no store access on mismatch), then username, then
// email. The store's unique constraints remain the authoritative guard.
func (s *AccountServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, errors.New("empty username/password")
	}
	if in.Password != in.ConfirmPassword {
		return nil, errs.ErrPasswordMismatch
	}

	taken, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.ErrUsernameTaken
	}
	if in.Email != "" {
		taken, err := s.users.EmailExists(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.ErrEmailTaken
		}
	}

	role := in.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, errors.New("unknown role")
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:       uid,
		Username: in.Username,
		Email:    in.Email,
		Role:     role,
		PwdHash:  pkgcrypto.HashPassword([]byte(in.Password), salt),
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// dummySalt/dummyHash give failed lookups the same verification cost as a
// wrong password, so response timing does not reveal account existence.
var (
	dummySalt = []byte("login-timing-pad")
	dummyHash = pkgcrypto.HashPassword([]byte("placeholder"), dummySalt)
)

// Login authenticates by username and password. Unknown usernames and wrong
// passwords are indistinguishable to the caller, in payload and in cost.
func (s *AccountServiceImpl) Login(ctx context.Context, username, password string) (model.Tokens, model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// lookup errors are masked as unauthorized to hide account existence;
		// the comparison result is discarded
		_ = pkgcrypto.VerifyPassword([]byte(password), dummySalt, dummyHash)
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	tokens, err := s.codec.Issue(u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tokens, *u, nil
}

// GetUser loads a user by ID. A valid token may reference an identity that no
// longer exists; callers get ErrNotFound, not a crash.
func (s *AccountServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// UsernameAvailable reports whether the username is free.
func (s *AccountServiceImpl) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	exists, err := s.users.UsernameExists(ctx, username)
	return !exists, err
}

// EmailAvailable reports whether the email is free. Blank emails are
// trivially available.
func (s *AccountServiceImpl) EmailAvailable(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return true, nil
	}
	exists, err := s.users.EmailExists(ctx, email)
	return !exists, err
}

// UpdateProfile applies partial updates: blank email/avatar leave the stored
// values unchanged.
func (s *AccountServiceImpl) UpdateProfile(ctx context.Context, id uuid.UUID, email, avatarURL string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != "" {
		taken, err := s.users.EmailTakenByOther(ctx, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.ErrEmailTaken
		}
		u.Email = email
	}
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the stored hash after verifying the current
// password. Confirmation is checked before any store access. Outstanding
// tokens stay valid until natural expiry: tokens are stateless and there is
// no revocation list.
func (s *AccountServiceImpl) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword, confirm string) error {
	if newPassword == "" {
		return errors.New("empty new password")
	}
	if newPassword != confirm {
		return errs.ErrPasswordMismatch
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword([]byte(current), u.SaltAuth, u.PwdHash) {
		return errs.ErrUnauthorized
	}

	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, pkgcrypto.HashPassword([]byte(newPassword), salt), salt)
}
