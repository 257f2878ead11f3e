package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CredentialsRepository interface {
	Store[*Credentials]

	GetByUsername(ctx context.Context, username string) (*Credentials, error)
	GetByUserID(ctx context.Context, userID ID) (*Credentials, error)
	UpdatePasswordHashTx(ctx context.Context, tx bun.IDB, id ID, passwordHash string) error
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error)
}

type credentials struct {
	*bunStore[*Credentials]
}

var _ CredentialsRepository = (*credentials)(nil)

func NewCredentialsRepository(db *bun.DB) CredentialsRepository {
	return &credentials{newBunStore(db, repository.ModelHandlers[*Credentials]{
		NewRecord: func() *Credentials { return &Credentials{} },
		GetID: func(c *Credentials) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID.UUID()
		},
		SetID: func(c *Credentials, id uuid.UUID) {
			if c != nil {
				c.ID = ID(id)
			}
		},
	})}
}

// GetByUsername matches the username exactly after trimming.
func (r *credentials) GetByUsername(ctx context.Context, username string) (*Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	return r.findOne(ctx, r.db, "get credentials by username", "username = ?", username)
}

func (r *credentials) GetByUserID(ctx context.Context, userID ID) (*Credentials, error) {
	return r.findOne(ctx, r.db, "get credentials by user", "user_id = ?", userID)
}

func (r *credentials) UpdatePasswordHashTx(ctx context.Context, tx bun.IDB, id ID, passwordHash string) error {
	_, err := tx.NewUpdate().
		Model(&Credentials{ID: id, PasswordHash: passwordHash}).
		Column("password_hash", "updated_at").
		WherePK().
		Exec(ctx)
	return NewDBError(err, "update password hash")
}

func (r *credentials) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, tx, userID)
}
