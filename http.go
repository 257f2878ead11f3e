package auth

import (
	stderrors "errors"
	"time"

	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RouteAuthenticator binds the Authenticator to HTTP: it sets and clears
// the auth cookie and header and builds the protecting middleware.
type RouteAuthenticator struct {
	auth      Authenticator
	validator jwtware.TokenValidator
	cfg       Config
	Logger    Logger
	now       func() time.Time
	onReject  []func(c *fiber.Ctx, err error)
}

func NewHTTPAuthenticator(auther Authenticator, validator jwtware.TokenValidator, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil || validator == nil {
		return nil, errors.New("authenticator and token validator are required", errors.CategoryInternal)
	}

	return &RouteAuthenticator{
		cfg:       cfg,
		auth:      auther,
		validator: validator,
		Logger:    defLogger(),
		now:       time.Now,
	}, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithRejectionListener registers fn to observe every request the
// middleware turns away, after the error has been classified.
func (a *RouteAuthenticator) WithRejectionListener(fn func(c *fiber.Ctx, err error)) *RouteAuthenticator {
	if fn != nil {
		a.onReject = append(a.onReject, fn)
	}
	return a
}

// CookieName is both the cookie and the response header the token is
// sent under.
func (a *RouteAuthenticator) CookieName() string {
	if name := a.cfg.GetContextKey(); name != "" {
		return name
	}
	return jwtware.DefaultCookieName
}

// ProtectedRoute returns the auth middleware. Paths in public skip it.
func (a *RouteAuthenticator) ProtectedRoute(public ...string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		Filter:          jwtware.PathFilter(public...),
		ErrorHandler:    a.MiddlewareErrorHandler,
		TokenValidator:  a.validator,
		TokenLookup:     "cookie:" + a.CookieName() + ",header:" + fiber.HeaderAuthorization + ",header:" + a.CookieName(),
		ContextEnricher: ContextEnricherAdapter,
	})
}

// RequireRole returns a guard for routes restricted to role.
func (a *RouteAuthenticator) RequireRole(role UserRole) fiber.Handler {
	return jwtware.RequireRole(jwtware.DefaultContextKey, string(role), a.MiddlewareErrorHandler)
}

// MiddlewareErrorHandler translates middleware failures into the error
// taxonomy and hands them to the app error handler.
func (a *RouteAuthenticator) MiddlewareErrorHandler(c *fiber.Ctx, err error) error {
	mapped := classifyMiddlewareError(err)
	for _, fn := range a.onReject {
		fn(c, mapped)
	}
	return mapped
}

func classifyMiddlewareError(err error) error {
	switch {
	case stderrors.Is(err, jwtware.ErrInsufficientRole):
		return withSource(ErrForbidden, err, nil)
	case stderrors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return ErrTokenMissing
	case stderrors.Is(err, jwtware.ErrJWTExpired):
		return ErrTokenExpired
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	return errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeTokenMalformed)
}

func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload) (*LoginResult, error) {
	result, err := a.auth.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return nil, err
	}

	a.setToken(c, result.Token, result.ExpiresAt)
	return result, nil
}

// Logout ends the session named by the cookie, if any, and always
// clears the cookie. It reports a short status message.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) (string, error) {
	raw := c.Cookies(a.CookieName())
	if raw == "" {
		return "nothing to log out", nil
	}

	deleted, err := a.auth.Logout(c.UserContext(), raw)
	a.cookieDel(c, a.CookieName())

	if err != nil {
		if IsAuthError(err) {
			a.Logger.Info("Logout with unusable token", "error", err)
			return "logged out", nil
		}
		return "", err
	}

	if !deleted {
		return "session already ended", nil
	}
	return "logged out", nil
}

func (a *RouteAuthenticator) Refresh(c *fiber.Ctx, claims *JWTClaims) (*LoginResult, error) {
	result, err := a.auth.Refresh(c.UserContext(), claims)
	if err != nil {
		return nil, err
	}

	a.setToken(c, result.Token, result.ExpiresAt)
	return result, nil
}

func (a *RouteAuthenticator) setToken(c *fiber.Ctx, token AccessToken, expires time.Time) {
	c.Set(a.CookieName(), token.String())
	c.Cookie(&fiber.Cookie{
		Name:     a.CookieName(),
		Value:    token.String(),
		Path:     "/",
		Domain:   a.cfg.GetCookieDomain(),
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.GetCookieDomain(),
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// ErrorHandler is the app wide error serializer. Every error is logged
// in full with the request id, the client sees a short message and a
// text code. Internal details are never echoed.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		richErr := AsRichError(err)

		requestID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		args := []any{
			"request_id", requestID,
			"method", c.Method(),
			"path", c.Path(),
			"status", richErr.Code,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"error", err.Error(),
		}
		if len(richErr.Metadata) > 0 {
			args = append(args, "details", print.MaybePrettyJSON(richErr.Metadata))
		}

		if richErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed", args...)
		} else {
			logger.Info("request rejected", args...)
		}

		msg := richErr.Message
		if richErr.Code >= fiber.StatusInternalServerError {
			msg = "internal server error"
		}

		return c.Status(richErr.Code).JSON(ErrorResponse{
			Error: msg,
			Code:  richErr.TextCode,
		})
	}
}
