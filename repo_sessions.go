package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the session store. Lifecycle: Create builds an unsaved
// session, Insert makes it active, IsExpired reaps it once its expiry has
// passed. Token validation never reads from here.
type Sessions interface {
	Store[*Session]

	Create(userID ID, role UserRole, expiry time.Time) (*Session, error)
	GetByUserID(ctx context.Context, userID ID) (*Session, error)
	FetchByAccessToken(ctx context.Context, token AccessToken) (*Session, error)
	FetchBySessionToken(ctx context.Context, token SessionToken) (*Session, error)
	UpdateTokensTx(ctx context.Context, tx bun.IDB, id ID, access AccessToken) error
	IsExpired(ctx context.Context, session *Session) (bool, error)
	DeleteByUserID(ctx context.Context, userID ID) (int, error)
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error)
	DeleteExpired(ctx context.Context) (int, error)
}

type sessions struct {
	*bunStore[*Session]
	tokens TokenService
	now    func() time.Time
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB, tokens TokenService) Sessions {
	return &sessions{
		bunStore: newBunStore(db, repository.ModelHandlers[*Session]{
			NewRecord: func() *Session { return &Session{} },
			GetID: func(s *Session) uuid.UUID {
				if s == nil {
					return uuid.Nil
				}
				return s.ID.UUID()
			},
			SetID: func(s *Session, id uuid.UUID) {
				if s != nil {
					s.ID = ID(id)
				}
			},
		}),
		tokens: tokens,
		now:    time.Now,
	}
}

// Create builds a session for userID with a fresh id, an access token
// bound to (user, session, expiry) and a random session token. It is
// not persisted.
func (r *sessions) Create(userID ID, role UserRole, expiry time.Time) (*Session, error) {
	// token exp has second precision, keep both sides equal
	expiry = expiry.UTC().Truncate(time.Second)
	id := NewID()

	access, err := r.tokens.EncodeUntil(userID, id, role, expiry)
	if err != nil {
		return nil, err
	}

	sessionToken, err := NewRandomSessionToken()
	if err != nil {
		return nil, NewDBError(err, "generate session token")
	}

	return &Session{
		ID:           id,
		UserID:       userID,
		SessionToken: sessionToken,
		AccessToken:  access,
		Expires:      expiry,
		CreatedAt:    storedNow(r.now()),
	}, nil
}

// GetByUserID returns the most recent session of the user.
func (r *sessions) GetByUserID(ctx context.Context, userID ID) (*Session, error) {
	session := &Session{}
	err := r.db.NewSelect().
		Model(session).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, NewDBError(err, "get session by user")
	}
	return session, nil
}

func (r *sessions) FetchByAccessToken(ctx context.Context, token AccessToken) (*Session, error) {
	if token.IsNil() {
		return nil, nil
	}
	return r.findOne(ctx, r.db, "get session by access token", "access_token = ?", token)
}

func (r *sessions) FetchBySessionToken(ctx context.Context, token SessionToken) (*Session, error) {
	if token.IsNil() {
		return nil, nil
	}
	return r.findOne(ctx, r.db, "get session by session token", "session_token = ?", token)
}

func (r *sessions) UpdateTokensTx(ctx context.Context, tx bun.IDB, id ID, access AccessToken) error {
	_, err := tx.NewUpdate().
		Model(&Session{ID: id, AccessToken: access}).
		Column("access_token").
		WherePK().
		Exec(ctx)
	return NewDBError(err, "update session tokens")
}

// IsExpired reports whether expires - now < 0 and reaps the row when it
// is.
func (r *sessions) IsExpired(ctx context.Context, session *Session) (bool, error) {
	if session == nil {
		return true, nil
	}
	if !session.ExpiredAt(r.now()) {
		return false, nil
	}
	if _, err := r.Delete(ctx, session.ID); err != nil {
		return true, err
	}
	return true, nil
}

func (r *sessions) DeleteByUserID(ctx context.Context, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, r.db, userID)
}

func (r *sessions) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, tx, userID)
}

// DeleteExpired reaps every session whose expiry has passed.
func (r *sessions) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("expires < ?", r.now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, NewDBError(err, "delete expired sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewDBError(err, "delete expired sessions")
	}
	return int(n), nil
}
