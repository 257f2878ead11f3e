package auth

import (
	"github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories and the transaction runner
// the multi row flows use.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager

	Users() Users
	Credentials() CredentialsRepository
	Accounts() Accounts
	Sessions() Sessions
	Profiles() Profiles
	VerificationRequests() VerificationRequests
}
