package auth

import (
	"context"

	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the claims in the given context
func WithClaimsContext(r context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the claims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the claims the middleware stored in locals
func GetRouterClaims(c *fiber.Ctx, key string) (*JWTClaims, bool) {
	if key == "" {
		key = jwtware.DefaultContextKey
	}
	claims, ok := c.Locals(key).(*JWTClaims)
	return claims, ok && claims != nil
}

// ContextEnricherAdapter lets the middleware put claims on the request
// context without importing this package.
func ContextEnricherAdapter(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	if c, ok := claims.(*JWTClaims); ok {
		return WithClaimsContext(ctx, c)
	}
	return ctx
}
