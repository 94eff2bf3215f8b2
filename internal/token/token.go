// Package token implements the signed bearer-token codec: issuance,
// verification and claim extraction for HS256 JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jimei-edu/authsvc/internal/errs"
	"github.com/jimei-edu/authsvc/internal/model"
)

// Claims is the signed claim set carried by an access token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with a symmetric key and fixed TTL.
// It is stateless and safe for concurrent use.
type Codec struct {
	key []byte
	ttl time.Duration
}

// NewCodec constructs a Codec. The key must be non-empty; ttl is the token
// lifetime (tokens are considered near expiry once half of it remains).
func NewCodec(key []byte, ttl time.Duration) *Codec {
	return &Codec{key: key, ttl: ttl}
}

// Issue creates a signed HS256 token for the given user.
func (c *Codec) Issue(u *model.User) (model.Tokens, error) {
	now := time.Now()
	exp := now.Add(c.ttl)
	claims := Claims{
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// parse verifies signature, method and expiry and returns the claims.
// Tokens without an exp claim are rejected outright, so callers can rely on
// ExpiresAt being set.
func (c *Codec) parse(tok string) (*Claims, error) {
	if tok == "" {
		return nil, errs.ErrInvalidToken
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errs.ErrInvalidToken
	}
	return &claims, nil
}

// Verify reports whether the token is well-formed, correctly signed and not
// expired. It never returns an error and never logs token contents.
func (c *Codec) Verify(tok string) bool {
	_, err := c.parse(tok)
	return err == nil
}

// Subject returns the user ID claim. Fails with ErrInvalidToken when the
// token cannot be parsed or carries a malformed subject.
func (c *Codec) Subject(tok string) (uuid.UUID, error) {
	claims, err := c.parse(tok)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrInvalidToken)
	}
	return id, nil
}

// Username returns the username claim.
func (c *Codec) Username(tok string) (string, error) {
	claims, err := c.parse(tok)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// Role returns the role claim, rejecting values outside the known role set.
func (c *Codec) Role(tok string) (model.Role, error) {
	claims, err := c.parse(tok)
	if err != nil {
		return "", err
	}
	r, ok := model.ParseRole(claims.Role)
	if !ok {
		return "", fmt.Errorf("%w: bad role", errs.ErrInvalidToken)
	}
	return r, nil
}

// NearExpiry reports whether the token should be refreshed: true when half
// or less of its lifetime remains, and true for unparseable tokens (fail
// toward "treat as expiring").
func (c *Codec) NearExpiry(tok string) bool {
	claims, err := c.parse(tok)
	if err != nil {
		return true
	}
	return time.Until(claims.ExpiresAt.Time) <= c.ttl/2
}
