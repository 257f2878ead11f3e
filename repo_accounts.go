package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Accounts interface {
	Store[*Account]

	GetByProviderAccount(ctx context.Context, providerID ProviderID, providerAccountID string) (*Account, error)
	GetCredentialsAccount(ctx context.Context, userID ID) (*Account, error)
	GetByUserID(ctx context.Context, userID ID) ([]*Account, error)
	UpdateAccessTokenTx(ctx context.Context, tx bun.IDB, id ID, token AccessToken, expires time.Time) error
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error)
}

type accounts struct {
	*bunStore[*Account]
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{newBunStore(db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID.UUID()
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = ID(id)
			}
		},
	})}
}

func (r *accounts) GetByProviderAccount(ctx context.Context, providerID ProviderID, providerAccountID string) (*Account, error) {
	return r.findOne(ctx, r.db, "get account by provider",
		"provider_id = ? AND provider_account_id = ?", providerID, providerAccountID)
}

// GetCredentialsAccount finds the local credentials account of a user.
func (r *accounts) GetCredentialsAccount(ctx context.Context, userID ID) (*Account, error) {
	return r.findOne(ctx, r.db, "get credentials account",
		"user_id = ? AND provider_type = ?", userID, ProviderTypeCredentials)
}

func (r *accounts) GetByUserID(ctx context.Context, userID ID) ([]*Account, error) {
	return r.findMany(ctx, r.db, "get accounts by user", "user_id = ?", userID)
}

// UpdateAccessTokenTx records the most recent access token issued for
// the account.
func (r *accounts) UpdateAccessTokenTx(ctx context.Context, tx bun.IDB, id ID, token AccessToken, expires time.Time) error {
	expires = expires.UTC()
	res, err := tx.NewUpdate().
		Model(&Account{ID: id, AccessToken: token, AccessTokenExpires: &expires}).
		Column("access_token", "access_token_expires", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return NewDBError(err, "update account access token")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewDBError(fmt.Errorf("account %s not found", id), "update account access token")
	}
	return nil
}

func (r *accounts) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, tx, userID)
}
