// Package model defines domain entities used by services, repositories and transport.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

var roleLabels = map[Role]string{
	RoleStudent:    "Student",
	RoleInstructor: "Instructor",
	RoleAdmin:      "Administrator",
}

// ParseRole maps a role name to a Role. Unknown names report ok=false.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleLabels[r]
	return r, ok
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// DisplayName returns the human-readable label for the role.
func (r Role) DisplayName() string { return roleLabels[r] }

// Authority returns the authorization scope tag for the role.
func (r Role) Authority() string { return "ROLE_" + string(r) }

// User represents an account stored on the server. The password hash and salt
// never leave the service layer.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	Email     string    // unique when set, empty means absent
	AvatarURL string
	Role      Role
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// Principal is the request-scoped identity derived from a verified token.
// It lives for a single request and is never persisted.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

// Tokens collects an issued access token with its expiry (for diagnostics).
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// UploadGrant is a short-lived scoped credential for direct object-storage
// uploads. Issued per request, never stored.
type UploadGrant struct {
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string // empty for static (dev) credentials
	Bucket          string
	Endpoint        string
	Region          string
	UploadPath      string // per-user prefix the grant is scoped to
	ExpiresAtMillis int64
}
