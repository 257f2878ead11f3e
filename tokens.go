package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionToken is the opaque token stored with a session row.
type SessionToken string

// AccessToken is a signed bearer token.
type AccessToken string

// RefreshToken is a provider refresh token kept on an account.
type RefreshToken string

func NewSessionToken(s string) SessionToken { return SessionToken(s) }
func (t SessionToken) IsNil() bool          { return t == "" }
func (t SessionToken) String() string       { return string(t) }

func NewAccessToken(s string) AccessToken { return AccessToken(s) }
func (t AccessToken) IsNil() bool         { return t == "" }
func (t AccessToken) String() string      { return string(t) }

func NewRefreshToken(s string) RefreshToken { return RefreshToken(s) }
func (t RefreshToken) IsNil() bool          { return t == "" }
func (t RefreshToken) String() string       { return string(t) }

const randomTokenBytes = 32

// NewRandomSessionToken returns an unguessable session token.
func NewRandomSessionToken() (SessionToken, error) {
	s, err := randomToken()
	if err != nil {
		return "", err
	}
	return SessionToken(s), nil
}

func randomToken() (string, error) {
	b := make([]byte, randomTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
