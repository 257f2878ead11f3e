package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// PublicRoutes are reachable without a token.
var PublicRoutes = []string{
	"/health",
	"/metrics",
	"/auth/login",
	"/auth/signup",
	"/auth/check",
	"/auth/jwt",
	"/auth/logout",
	"/auth/verify/*",
}

// DefaultPhoneRegion is used to parse phone numbers written without an
// international prefix.
const DefaultPhoneRegion = "GB"

type AuthController struct {
	Debug       bool
	Logger      Logger
	Repo        RepositoryManager
	Auther      *RouteAuthenticator
	Activity    ActivitySink
	PhoneRegion string
	ContextKey  string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(repo RepositoryManager, auther *RouteAuthenticator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:      defLogger(),
		Repo:        repo,
		Auther:      auther,
		Activity:    noopActivitySink{},
		PhoneRegion: DefaultPhoneRegion,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts every route on app. The auth middleware is
// installed first and skips PublicRoutes.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	app.Use(controller.Auther.ProtectedRoute(PublicRoutes...))

	app.Get("/health", controller.Health)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", controller.Signup)
	authGroup.Post("/login", controller.Login)
	authGroup.Post("/logout", controller.Logout)
	authGroup.Get("/check", controller.Check)
	authGroup.Get("/jwt", controller.JWT)
	authGroup.Post("/refresh", controller.Refresh)
	authGroup.Put("/password", controller.ChangePassword)
	authGroup.Post("/verification", controller.RequestVerification)
	authGroup.Get("/verify/:token", controller.Verify)
	authGroup.Get("/session", controller.SessionInfo)

	userGroup := app.Group("/user")
	userGroup.Get("/", controller.UserFromHeader)
	userGroup.Get("/me", controller.LoadUser, controller.Me)
	userGroup.Get("/id/:id", controller.UserByID)
	userGroup.Patch("/profile", controller.UpdateProfile)
	userGroup.Delete("/me", controller.DeleteMe)

	adminGroup := app.Group("/admin", controller.Auther.RequireRole(RoleAdmin))
	adminGroup.Delete("/users/:id/sessions", controller.AdminDeleteUserSessions)
	adminGroup.Delete("/sessions/expired", controller.AdminDeleteExpiredSessions)
}

func (a *AuthController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// SignupRequest payload
type SignupRequest struct {
	Email    string `json:"email" form:"email"`
	Name     string `json:"name" form:"name"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (a *AuthController) Signup(c *fiber.Ctx) error {
	payload := new(SignupRequest)
	if err := c.BodyParser(payload); err != nil {
		return NewValidationError(err, "invalid request body")
	}

	handler := NewRegisterUserHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	user, err := handler.Execute(c.UserContext(), RegisterUserMessage{
		Email:    payload.Email,
		Name:     payload.Name,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(user)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return NewValidationError(err, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err, "invalid login payload")
	}

	result, err := a.Auther.Login(c, payload)
	if err != nil {
		return err
	}

	if a.Debug {
		a.Logger.Debug("login", "user", print.MaybePrettyJSON(result.User))
	}

	return c.JSON(result.User)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	msg, err := a.Auther.Logout(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": msg})
}

// Check decodes the caller's token without touching the session store
// and returns its claims. Any failure is a 401.
func (a *AuthController) Check(c *fiber.Ctx) error {
	raw := a.rawToken(c)
	if raw == "" {
		c.Set(jwtware.DefaultAuthorizedHeader, "false")
		return ErrTokenMissing
	}

	claims, err := a.Auther.auth.ClaimsFromToken(raw)
	if err != nil {
		c.Set(jwtware.DefaultAuthorizedHeader, "false")
		return err
	}

	c.Set(jwtware.DefaultAuthorizedHeader, "true")
	return c.JSON(claims)
}

// JWT echoes the token the caller presented, 404 when there is none.
func (a *AuthController) JWT(c *fiber.Ctx) error {
	raw := a.rawToken(c)
	if raw == "" {
		return ErrNotFound
	}
	return c.SendString(raw)
}

// rawToken reads the cookie, which is authoritative, then the bearer
// header.
func (a *AuthController) rawToken(c *fiber.Ctx) string {
	if raw := strings.TrimSpace(c.Cookies(a.Auther.CookieName())); raw != "" {
		return raw
	}
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	result, err := a.Auther.Refresh(c, claims)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"user":    result.User,
		"expires": result.ExpiresAt,
	})
}

func (a *AuthController) ChangePassword(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	payload := new(ChangePasswordMessage)
	if err := c.BodyParser(payload); err != nil {
		return NewValidationError(err, "invalid request body")
	}
	payload.UserID = userID

	handler := NewChangePasswordHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := handler.Execute(c.UserContext(), *payload); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "password changed"})
}

func (a *AuthController) RequestVerification(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	var expires time.Time
	handler := NewVerificationRequestHandler(a.Repo).WithLogger(a.Logger)
	err = handler.Execute(c.UserContext(), VerificationRequestMessage{
		UserID: userID,
		OnResponse: func(req *VerificationRequest) {
			expires = req.Expires
		},
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"expires": expires})
}

func (a *AuthController) Verify(c *fiber.Ctx) error {
	handler := NewVerifyEmailHandler(a.Repo).WithActivitySink(a.Activity)
	if err := handler.Execute(c.UserContext(), VerifyEmailMessage{Token: c.Params("token")}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "email verified"})
}

// SessionInfo resolves the x-session-token header to the caller's
// session.
func (a *AuthController) SessionInfo(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	in, err := SessionInFromHeader(c)
	if err != nil {
		return err
	}

	session, err := a.Repo.Sessions().FetchBySessionToken(c.UserContext(), in.Token)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNotFound
	}
	if session.UserID != userID {
		return ErrInvalidToken
	}

	expired, err := a.Repo.Sessions().IsExpired(c.UserContext(), session)
	if err != nil {
		return err
	}
	if expired {
		return ErrTokenExpired
	}

	return c.JSON(session)
}

func (a *AuthController) UserByID(c *fiber.Ctx) error {
	id, err := IDFromParam(c, "id")
	if err != nil {
		return err
	}
	return a.sendUser(c, id)
}

func (a *AuthController) UserFromHeader(c *fiber.Ctx) error {
	id, err := IDFromHeader(c, DefaultIDHeader)
	if err != nil {
		return err
	}
	return a.sendUser(c, id)
}

// MeResponse is the caller's user with profile.
type MeResponse struct {
	User    *User    `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}

// LoadUser puts the caller's user record on the request context. A
// token whose user is gone is a 404.
func (a *AuthController) LoadUser(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	user, err := a.Repo.Users().Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}

	c.SetUserContext(WithContext(c.UserContext(), user))
	return c.Next()
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	user, ok := FromContext(c.UserContext())
	if !ok || user == nil {
		return ErrNotFound
	}

	profile, err := a.Repo.Profiles().GetByUserID(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(MeResponse{User: user, Profile: profile})
}

// ProfileUpdateRequest payload. Nil fields are left untouched.
type ProfileUpdateRequest struct {
	Bio     *string `json:"bio"`
	Phone   *string `json:"phone"`
	Website *string `json:"website"`
}

func (r ProfileUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Bio, validation.Length(0, 1000)),
		validation.Field(&r.Website, is.URL),
	)
}

func (a *AuthController) UpdateProfile(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	payload := new(ProfileUpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return NewValidationError(err, "invalid request body")
	}
	if err := payload.Validate(); err != nil {
		return NewValidationError(err, "invalid profile payload")
	}

	profile, err := a.Repo.Profiles().GetByUserID(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrNotFound
	}

	columns := []string{}
	if payload.Bio != nil {
		profile.Bio = strPtr(strings.TrimSpace(*payload.Bio))
		columns = append(columns, "bio")
	}
	if payload.Website != nil {
		profile.Website = strPtr(strings.TrimSpace(*payload.Website))
		columns = append(columns, "website")
	}
	if payload.Phone != nil {
		phone, err := NormalizePhone(*payload.Phone, a.PhoneRegion)
		if err != nil {
			return err
		}
		profile.Phone = strPtr(phone)
		columns = append(columns, "phone")
	}

	if len(columns) == 0 {
		return c.JSON(profile)
	}

	err = a.Repo.RunInTx(c.UserContext(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := a.Repo.Profiles().UpdateTx(ctx, tx, profile, columns...)
		return err
	})
	if err != nil {
		return err
	}

	return c.JSON(profile)
}

func (a *AuthController) DeleteMe(c *fiber.Ctx) error {
	userID, err := a.userID(c)
	if err != nil {
		return err
	}

	handler := NewDeleteUserHandler(a.Repo).WithActivitySink(a.Activity)
	if err := handler.Execute(c.UserContext(), DeleteUserMessage{UserID: userID}); err != nil {
		return err
	}

	a.Auther.cookieDel(c, a.Auther.CookieName())
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) AdminDeleteUserSessions(c *fiber.Ctx) error {
	userID, err := IDFromParam(c, "id")
	if err != nil {
		return err
	}

	n, err := a.Repo.Sessions().DeleteByUserID(c.UserContext(), userID)
	if err != nil {
		return err
	}

	a.Logger.Info("admin removed user sessions", "user_id", userID.String(), "count", n)
	return c.JSON(fiber.Map{"deleted": n})
}

func (a *AuthController) AdminDeleteExpiredSessions(c *fiber.Ctx) error {
	n, err := a.Repo.Sessions().DeleteExpired(c.UserContext())
	if err != nil {
		return err
	}

	emitActivity(c.UserContext(), a.Activity, a.Logger, ActivityEvent{
		EventType: ActivityEventSessionReaped,
		Count:     n,
	})
	return c.JSON(fiber.Map{"deleted": n})
}

func (a *AuthController) sendUser(c *fiber.Ctx, id ID) error {
	user, err := a.Repo.Users().Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	return c.JSON(user)
}

func (a *AuthController) claims(c *fiber.Ctx) (*JWTClaims, error) {
	claims, ok := GetRouterClaims(c, a.ContextKey)
	if !ok {
		return nil, ErrTokenMissing
	}
	return claims, nil
}

func (a *AuthController) userID(c *fiber.Ctx) (ID, error) {
	claims, err := a.claims(c)
	if err != nil {
		return NilID, err
	}
	id, err := claims.UserID()
	if err != nil {
		return NilID, ErrTokenMalformed
	}
	return id, nil
}

// NormalizePhone parses raw and returns it in E.164 form. An empty
// string clears the number.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"phone": raw})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
