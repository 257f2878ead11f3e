package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultIDHeader carries the caller's user id for service to service
	// calls.
	DefaultIDHeader = "dvsa-user-id"
	// SessionTokenHeader carries an opaque session token.
	SessionTokenHeader = "x-session-token"
)

// SessionIn is the session token a handler received, not yet resolved
// against the store.
type SessionIn struct {
	Token SessionToken
}

// IDFromHeader reads an identifier from header, DefaultIDHeader when
// empty. A missing header is a missing parameter, a malformed one a
// parse error, both 400.
func IDFromHeader(c *fiber.Ctx, header string) (ID, error) {
	if header == "" {
		header = DefaultIDHeader
	}

	raw := strings.TrimSpace(c.Get(header))
	if raw == "" {
		return NilID, withSource(ErrMissingParam, nil, map[string]any{"header": header})
	}

	return ParseID(raw)
}

// IDFromParam reads an identifier from a route parameter.
func IDFromParam(c *fiber.Ctx, param string) (ID, error) {
	raw := strings.TrimSpace(c.Params(param))
	if raw == "" {
		return NilID, withSource(ErrMissingParam, nil, map[string]any{"param": param})
	}
	return ParseID(raw)
}

// SessionInFromHeader reads the x-session-token header. Absent tokens
// are a 401.
func SessionInFromHeader(c *fiber.Ctx) (SessionIn, error) {
	raw := strings.TrimSpace(c.Get(SessionTokenHeader))
	if raw == "" {
		return SessionIn{}, ErrMissingToken
	}
	return SessionIn{Token: NewSessionToken(raw)}, nil
}
