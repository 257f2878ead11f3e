package auth

import (
	"context"
	"log/slog"
	"time"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defLogger() Logger {
	return slog.Default()
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) (bool, error)
	Refresh(ctx context.Context, claims *JWTClaims) (*LoginResult, error)
	ClaimsFromToken(token string) (*JWTClaims, error)
}

// LoginResult is what a successful login or refresh hands back.
type LoginResult struct {
	User      *User
	Session   *Session
	Token     AccessToken
	ExpiresAt time.Time
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	// GetContextKey names both the auth cookie and the response header.
	GetContextKey() string
	GetSessionDuration() time.Duration
	GetCookieSecure() bool
	GetCookieDomain() string
}
