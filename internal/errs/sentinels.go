// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication. Deliberately
	// undifferentiated: unknown username and wrong password map to the same value.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPasswordMismatch indicates password and confirmation differ.
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username taken")

	// ErrEmailTaken indicates the email is already owned by another account.
	ErrEmailTaken = errors.New("email taken")

	// ErrInvalidToken indicates a token that cannot be parsed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrStorageUnconfigured indicates the upload-credential provider is not set up.
	ErrStorageUnconfigured = errors.New("storage unconfigured")
)
