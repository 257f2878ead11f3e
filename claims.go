package auth

import (
	"time"

	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the payload of every access token: the registered claims
// (iss, sub, iat, exp) plus the session id and the user role.
type JWTClaims struct {
	jwt.RegisteredClaims
	SID      string `json:"sid"`
	UserRole string `json:"role,omitempty"`
}

// Verify interface compliance
var _ jwtware.AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID parses the subject claim
func (c *JWTClaims) UserID() (ID, error) {
	return ParseID(c.RegisteredClaims.Subject)
}

// SessionID parses the sid claim
func (c *JWTClaims) SessionID() (ID, error) {
	return ParseID(c.SID)
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the user's role meets the minimum requirement
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return UserRole(c.UserRole).IsAtLeast(UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether the token is past its expiry at now. A token
// without exp is treated as expired.
func (c *JWTClaims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	return exp.IsZero() || !exp.After(now)
}
