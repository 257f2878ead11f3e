package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/uptrace/bun"
)

type mngr struct {
	db                   *bun.DB
	users                auth.Users
	credentials          auth.CredentialsRepository
	accounts             auth.Accounts
	sessions             auth.Sessions
	profiles             auth.Profiles
	verificationRequests auth.VerificationRequests
}

var _ auth.RepositoryManager = (*mngr)(nil)

// NewRepositoryManager wires every bun backed repository to db. The
// token service is used by the session store to mint access tokens.
func NewRepositoryManager(db *bun.DB, tokens auth.TokenService) auth.RepositoryManager {
	return &mngr{
		db:                   db,
		users:                auth.NewUsersRepository(db),
		credentials:          auth.NewCredentialsRepository(db),
		accounts:             auth.NewAccountsRepository(db),
		sessions:             auth.NewSessionsRepository(db, tokens),
		profiles:             auth.NewProfilesRepository(db),
		verificationRequests: auth.NewVerificationRequestsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.users == nil || m.credentials == nil || m.accounts == nil {
		return errors.New("repository users, credentials and accounts should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.profiles == nil || m.verificationRequests == nil {
		return errors.New("repository profiles and verification requests should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx runs f in a transaction. A request context that is already
// done never opens one.
func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() auth.Users {
	return m.users
}

func (m mngr) Credentials() auth.CredentialsRepository {
	return m.credentials
}

func (m mngr) Accounts() auth.Accounts {
	return m.accounts
}

func (m mngr) Sessions() auth.Sessions {
	return m.sessions
}

func (m mngr) Profiles() auth.Profiles {
	return m.profiles
}

func (m mngr) VerificationRequests() auth.VerificationRequests {
	return m.verificationRequests
}
