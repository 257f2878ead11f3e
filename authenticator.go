package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultSessionDuration is the lifetime of a login session.
const DefaultSessionDuration = 48 * time.Hour

type Auther struct {
	repo            RepositoryManager
	tokenService    TokenService
	sessionDuration time.Duration
	logger          Logger
	activitySink    ActivitySink
	now             func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService, opts Config) *Auther {
	duration := DefaultSessionDuration
	if opts != nil && opts.GetSessionDuration() > 0 {
		duration = opts.GetSessionDuration()
	}
	prepareDecoyHash()

	return &Auther{
		repo:            repo,
		tokenService:    tokens,
		sessionDuration: duration,
		logger:          defLogger(),
		activitySink:    noopActivitySink{},
		now:             time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithSessionDuration(d time.Duration) *Auther {
	if d > 0 {
		s.sessionDuration = d
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login checks the username and password, opens a session and returns
// the session's access token. Unknown usernames and wrong passwords fail
// the same way, storage failures are never reported as bad credentials.
func (s *Auther) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	creds, err := s.repo.Credentials().GetByUsername(ctx, username)
	if err != nil {
		s.logger.Error("Login credentials lookup error", "error", err)
		return nil, err
	}

	if creds == nil {
		burnPasswordCheck(password)
		s.loginFailed(ctx, username, "unknown username")
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(password, creds.PasswordHash) {
		s.loginFailed(ctx, username, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.Users().Get(ctx, creds.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logger.Error("Login credentials reference a missing user", "user_id", creds.UserID.String())
		return nil, NewDBError(goerrors.New("user row missing for credentials", goerrors.CategoryInternal), "login load user")
	}

	account, err := s.repo.Accounts().GetByProviderAccount(ctx, ProviderLocal, creds.ID.String())
	if err != nil {
		return nil, err
	}
	if account == nil {
		s.logger.Error("Login credentials account missing", "user_id", user.ID.String())
		return nil, NewDBError(goerrors.New("credentials account missing", goerrors.CategoryInternal), "login load account")
	}

	role, err := s.roleFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.Sessions().Create(user.ID, role, s.now().Add(s.sessionDuration))
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Accounts().UpdateAccessTokenTx(ctx, tx, account.ID, session.AccessToken, session.Expires); err != nil {
			return err
		}
		_, err := s.repo.Sessions().InsertTx(ctx, tx, session)
		return err
	})
	if err != nil {
		s.logger.Error("Login session transaction failed", "error", err)
		return nil, NewDBError(err, "login session transaction")
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), session.ID.String(), nil)

	return &LoginResult{
		User:      user,
		Session:   session,
		Token:     session.AccessToken,
		ExpiresAt: session.Expires,
	}, nil
}

// Logout deletes the session named by the token's sid. Expired tokens
// are accepted. It reports whether a session row was removed.
func (s *Auther) Logout(ctx context.Context, token string) (bool, error) {
	claims, err := s.tokenService.DecodeAllowExpired(token)
	if err != nil {
		return false, err
	}

	sid, err := claims.SessionID()
	if err != nil {
		return false, ErrTokenMalformed
	}

	deleted, err := s.repo.Sessions().Delete(ctx, sid)
	if err != nil {
		return false, err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, claims.Subject(), sid.String(), map[string]any{
		"deleted": deleted != nil,
	})

	return deleted != nil, nil
}

// Refresh re-mints the access token of a live session. The new token
// keeps the session's expiry.
func (s *Auther) Refresh(ctx context.Context, claims *JWTClaims) (*LoginResult, error) {
	if claims == nil {
		return nil, ErrTokenMissing
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	sid, err := claims.SessionID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	session, err := s.repo.Sessions().Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.UserID != userID {
		return nil, ErrInvalidToken
	}

	expired, err := s.repo.Sessions().IsExpired(ctx, session)
	if err != nil {
		return nil, err
	}
	if expired {
		s.emitAuthEvent(ctx, ActivityEventSessionReaped, userID.String(), sid.String(), nil)
		return nil, ErrTokenExpired
	}

	user, err := s.repo.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	role, err := s.roleFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokenService.EncodeUntil(userID, sid, role, session.Expires)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetCredentialsAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Sessions().UpdateTokensTx(ctx, tx, sid, token); err != nil {
			return err
		}
		if account == nil {
			return nil
		}
		return s.repo.Accounts().UpdateAccessTokenTx(ctx, tx, account.ID, token, session.Expires)
	})
	if err != nil {
		return nil, NewDBError(err, "refresh session transaction")
	}

	session.AccessToken = token
	s.emitAuthEvent(ctx, ActivityEventRefresh, userID.String(), sid.String(), nil)

	return &LoginResult{
		User:      user,
		Session:   session,
		Token:     token,
		ExpiresAt: session.Expires,
	}, nil
}

// ClaimsFromToken decodes and validates a token.
func (s *Auther) ClaimsFromToken(token string) (*JWTClaims, error) {
	return s.tokenService.Decode(token)
}

// roleFor reads the role from the user's profile, defaulting to user.
func (s *Auther) roleFor(ctx context.Context, userID ID) (UserRole, error) {
	profile, err := s.repo.Profiles().GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile == nil || !profile.Role.IsValid() {
		return DefaultRole, nil
	}
	return profile.Role, nil
}

func (s *Auther) loginFailed(ctx context.Context, username, reason string) {
	s.logger.Info("Login rejected", "reason", reason)
	s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", "", map[string]any{
		"username": username,
		"reason":   reason,
	})
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID, sessionID string, metadata map[string]any) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		SessionID:  sessionID,
		Count:      1,
		Metadata:   metadata,
		OccurredAt: s.now().UTC(),
	})
}
