package jwtware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultContextKey is the Locals key claims are stored under.
	DefaultContextKey = "user"
	// DefaultCookieName is the auth cookie and response header name.
	DefaultCookieName = "dvsa-auth"
	// DefaultAuthorizedHeader reports the middleware decision to clients.
	DefaultAuthorizedHeader = "dvsa-authorized"
)

var (
	defaultTokenLookup = "cookie:" + DefaultCookieName +
		",header:" + fiber.HeaderAuthorization +
		",header:" + DefaultCookieName

	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrJWTExpired            = errors.New("JWT has expired")
	ErrInsufficientRole      = errors.New("insufficient role")
)

// TokenValidator interface for validating tokens without import cycles
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles
type AuthClaims interface {
	Subject() string
	Role() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
}

// ValidationListener is invoked after a token has been validated but before authorization checks.
type ValidationListener func(c *fiber.Ctx, claims AuthClaims) error

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	ContextKey     string
	// TokenLookup is a comma separated list of "source:name" pairs tried
	// in order, e.g. "cookie:dvsa-auth,header:Authorization".
	TokenLookup string
	// AuthScheme is required on the Authorization header only.
	AuthScheme       string
	AuthorizedHeader string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// RequiredRole specifies an exact role that must be present
	RequiredRole string
	// MinimumRole specifies the minimum role level required
	MinimumRole string

	// ContextEnricher is an optional function to propagate claims to the standard
	// Go context. If provided, it will be called after successful token validation.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners are invoked after token validation succeeds.
	ValidationListeners []ValidationListener

	// Now is the clock used for the expiry check.
	Now func() time.Time
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.reject(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.reject(c, err)
		}

		if exp := claims.Expires(); exp.IsZero() || !exp.After(cfg.Now()) {
			return cfg.reject(c, ErrJWTExpired)
		}

		if err := cfg.runValidationListeners(c, claims); err != nil {
			return cfg.reject(c, err)
		}

		if err := performAuthorizationChecks(claims, cfg); err != nil {
			return cfg.reject(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		c.Set(cfg.AuthorizedHeader, "true")
		return cfg.SuccessHandler(c)
	}
}

// RequireRole guards a route group that already passed New. Claims are
// read from Locals under contextKey.
func RequireRole(contextKey, role string, errorHandler ...fiber.ErrorHandler) fiber.Handler {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}
	handler := defaultErrorHandler
	if len(errorHandler) > 0 && errorHandler[0] != nil {
		handler = errorHandler[0]
	}

	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(contextKey).(AuthClaims)
		if !ok || claims == nil {
			return handler(c, ErrJWTMissingOrMalformed)
		}
		if !claims.HasRole(role) {
			return handler(c, fmt.Errorf("%w: required role '%s'", ErrInsufficientRole, role))
		}
		return c.Next()
	}
}

func (cfg Config) reject(c *fiber.Ctx, err error) error {
	c.Set(cfg.AuthorizedHeader, "false")
	return cfg.ErrorHandler(c, err)
}

// performAuthorizationChecks performs RBAC authorization checks using the configured options
func performAuthorizationChecks(claims AuthClaims, cfg Config) error {
	if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
		return fmt.Errorf("%w: required role '%s' not found", ErrInsufficientRole, cfg.RequiredRole)
	}

	if cfg.MinimumRole != "" && !claims.IsAtLeast(cfg.MinimumRole) {
		return fmt.Errorf("%w: minimum role '%s' required", ErrInsufficientRole, cfg.MinimumRole)
	}

	return nil
}

// ExtractRawToken returns the first token found by the extractors. The
// order of the extractors is the order of precedence.
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrInsufficientRole) {
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}
	return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.AuthorizedHeader == "" {
		cfg.AuthorizedHeader = DefaultAuthorizedHeader
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, claims); err != nil {
			return err
		}
	}
	return nil
}

// PathFilter skips the middleware for the given exact paths. Entries
// ending in "/*" match the prefix.
func PathFilter(paths ...string) func(*fiber.Ctx) bool {
	exact := make(map[string]struct{}, len(paths))
	var prefixes []string
	for _, p := range paths {
		if strings.HasSuffix(p, "/*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		exact[p] = struct{}{}
	}

	return func(c *fiber.Ctx) bool {
		path := c.Path()
		if _, ok := exact[path]; ok {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// cookie:dvsa-auth,header:Authorization,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			if strings.EqualFold(parts[1], fiber.HeaderAuthorization) {
				extractors = append(extractors, jwtFromAuthHeader(parts[1], authScheme))
			} else {
				extractors = append(extractors, jwtFromHeader(parts[1]))
			}
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromAuthHeader extracts "<scheme> <token>" from the header.
func jwtFromAuthHeader(header string, authScheme string) JWTExtractor {
	authScheme = strings.TrimSpace(authScheme)
	l := len(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromHeader returns the raw header value.
func jwtFromHeader(header string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := strings.TrimSpace(c.Get(header))
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
