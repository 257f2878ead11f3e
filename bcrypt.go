package auth

import (
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// VerifyPassword reports whether password matches hash. A malformed hash
// never matches.
func VerifyPassword(password, hash string) bool {
	return ComparePasswordAndHash(password, hash) == nil
}

var (
	decoyHashOnce sync.Once
	decoyHash     string
)

// prepareDecoyHash builds the throwaway hash once. NewAuthenticator calls
// it up front.
func prepareDecoyHash() {
	decoyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("dvsa-decoy-password"), bcrypt.DefaultCost)
		if err == nil {
			decoyHash = string(h)
		}
	})
}

// burnPasswordCheck runs a comparison against the throwaway hash so an
// unknown username costs the same as a wrong password.
func burnPasswordCheck(password string) {
	prepareDecoyHash()
	if decoyHash == "" {
		return
	}
	_ = bcrypt.CompareHashAndPassword([]byte(decoyHash), []byte(password))
}
