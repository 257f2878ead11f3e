package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	Store[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id ID, at time.Time) error
}

type users struct {
	*bunStore[*User]
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{newBunStore(db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID.UUID()
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = ID(id)
			}
		},
	})}
}

func (r *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return r.findOne(ctx, r.db, "get user by email", "lower(email) = ?", email)
}

func (r *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id ID, at time.Time) error {
	at = at.UTC()
	_, err := tx.NewUpdate().
		Model(&User{ID: id, EmailVerified: &at}).
		Column("email_verified", "updated_at").
		WherePK().
		Exec(ctx)
	return NewDBError(err, "mark email verified")
}
