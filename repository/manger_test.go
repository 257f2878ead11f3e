package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/dvsa/dvsa-auth/internal/database"
	"github.com/dvsa/dvsa-auth/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newManager(t *testing.T) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+auth.NewID().String()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(context.Background(), db))

	tokens, err := auth.NewTokenService([]byte("secret"), "dvsa", nil)
	require.NoError(t, err)

	return repository.NewRepositoryManager(db, tokens), db
}

func newUser(email string) *auth.User {
	return &auth.User{ID: auth.NewID(), Email: &email}
}

func TestValidate(t *testing.T) {
	repo, _ := newManager(t)
	assert.NoError(t, repo.Validate())
	assert.NotPanics(t, repo.MustValidate)

	empty := repository.NewRepositoryManager(nil, nil)
	assert.Error(t, empty.Validate())
	assert.Panics(t, empty.MustValidate)
}

func TestRepositories(t *testing.T) {
	repo, _ := newManager(t)

	assert.Equal(t, "users", repo.Users().Table())
	assert.Equal(t, "credentials", repo.Credentials().Table())
	assert.Equal(t, "accounts", repo.Accounts().Table())
	assert.Equal(t, "sessions", repo.Sessions().Table())
	assert.Equal(t, "profiles", repo.Profiles().Table())
	assert.Equal(t, "verification_requests", repo.VerificationRequests().Table())
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		repo, db := newManager(t)

		err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := repo.Users().InsertTx(ctx, tx, newUser("a@x.io"))
			return err
		})
		require.NoError(t, err)

		n, err := db.NewSelect().Model((*auth.User)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rollback", func(t *testing.T) {
		repo, db := newManager(t)
		boom := errors.New("boom")

		err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := repo.Users().InsertTx(ctx, tx, newUser("b@x.io")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := db.NewSelect().Model((*auth.User)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo, _ := newManager(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := repo.RunInTx(cancelled, nil, func(ctx context.Context, tx bun.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
