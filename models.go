package auth

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// ProviderType is the kind of authentication an Account represents.
type ProviderType string

const (
	ProviderTypeEmail       ProviderType = "email"
	ProviderTypeCredentials ProviderType = "credentials"
	ProviderTypeOAuth       ProviderType = "oauth"
)

// ProviderID names the concrete provider behind an Account.
type ProviderID string

const (
	ProviderLocal    ProviderID = "local"
	ProviderGoogle   ProviderID = "google"
	ProviderGithub   ProviderID = "github"
	ProviderGitlab   ProviderID = "gitlab"
	ProviderFacebook ProviderID = "facebook"
	ProviderLinkedin ProviderID = "linkedin"
	ProviderTwitter  ProviderID = "twitter"
)

// Model is implemented by every persisted entity.
type Model interface {
	TableName() string
	ForeignKeyName() string
}

// foreignKeyFor derives the referencing column name from a table name.
func foreignKeyFor(table string) string {
	return strings.TrimSuffix(table, "s") + "_id"
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            ID         `bun:"id,pk,type:uuid" json:"id"`
	Name          *string    `bun:"name" json:"name,omitempty"`
	Email         *string    `bun:"email,unique" json:"email,omitempty"`
	EmailVerified *time.Time `bun:"email_verified,nullzero" json:"email_verified,omitempty"`
	Image         *string    `bun:"image" json:"image,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (User) TableName() string      { return "users" }
func (User) ForeignKeyName() string { return foreignKeyFor("users") }

var _ bun.BeforeAppendModelHook = (*User)(nil)

func (m *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, &m.UpdatedAt)
	return nil
}

// Credentials stores the username and password hash of a local login.
type Credentials struct {
	bun.BaseModel `bun:"table:credentials,alias:crd"`
	ID            ID        `bun:"id,pk,type:uuid" json:"id"`
	UserID        ID        `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Username      string    `bun:"username,notnull,unique" json:"username"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (Credentials) TableName() string { return "credentials" }

// ForeignKeyName is credential_id, the table name is already plural.
func (Credentials) ForeignKeyName() string { return "credential_id" }

var _ bun.BeforeAppendModelHook = (*Credentials)(nil)

func (m *Credentials) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, &m.UpdatedAt)
	return nil
}

// Account links a user to an authentication provider. For local logins
// the provider account id is the credentials id.
type Account struct {
	bun.BaseModel      `bun:"table:accounts,alias:acc"`
	ID                 ID           `bun:"id,pk,type:uuid" json:"id"`
	UserID             ID           `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ProviderType       ProviderType `bun:"provider_type,notnull" json:"provider_type"`
	ProviderID         ProviderID   `bun:"provider_id,notnull,unique:provider_account" json:"provider_id"`
	ProviderAccountID  string       `bun:"provider_account_id,notnull,unique:provider_account" json:"provider_account_id"`
	RefreshToken       RefreshToken `bun:"refresh_token,nullzero" json:"-"`
	AccessToken        AccessToken  `bun:"access_token,nullzero" json:"-"`
	AccessTokenExpires *time.Time   `bun:"access_token_expires,nullzero" json:"access_token_expires,omitempty"`
	CreatedAt          time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (Account) TableName() string      { return "accounts" }
func (Account) ForeignKeyName() string { return foreignKeyFor("accounts") }

var _ bun.BeforeAppendModelHook = (*Account)(nil)

func (m *Account) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, &m.UpdatedAt)
	return nil
}

// Session is a server side login record. Its access token expires at the
// same instant as the session.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            ID           `bun:"id,pk,type:uuid" json:"id"`
	UserID        ID           `bun:"user_id,notnull,type:uuid" json:"user_id"`
	SessionToken  SessionToken `bun:"session_token,notnull,unique" json:"-"`
	AccessToken   AccessToken  `bun:"access_token,notnull" json:"-"`
	Expires       time.Time    `bun:"expires,notnull" json:"expires"`
	CreatedAt     time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (Session) TableName() string      { return "sessions" }
func (Session) ForeignKeyName() string { return foreignKeyFor("sessions") }

var _ bun.BeforeAppendModelHook = (*Session)(nil)

func (m *Session) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, nil)
	return nil
}

// ExpiredAt reports whether the session is past its expiry at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return s.Expires.Sub(now) < 0
}

// Profile holds the mutable, non credential attributes of a user.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            ID        `bun:"id,pk,type:uuid" json:"id"`
	UserID        ID        `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	Role          UserRole  `bun:"role,notnull,default:'user'" json:"role"`
	Bio           *string   `bun:"bio" json:"bio,omitempty"`
	Phone         *string   `bun:"phone" json:"phone,omitempty"`
	Website       *string   `bun:"website" json:"website,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (Profile) TableName() string      { return "profiles" }
func (Profile) ForeignKeyName() string { return foreignKeyFor("profiles") }

var _ bun.BeforeAppendModelHook = (*Profile)(nil)

func (m *Profile) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, &m.UpdatedAt)
	return nil
}

// VerificationRequest is a pending email verification.
type VerificationRequest struct {
	bun.BaseModel `bun:"table:verification_requests,alias:vrq"`
	ID            ID        `bun:"id,pk,type:uuid" json:"id"`
	UserID        ID        `bun:"user_id,nullzero,type:uuid" json:"user_id"`
	Identifier    string    `bun:"identifier,notnull" json:"identifier"`
	Token         string    `bun:"token,notnull,unique" json:"-"`
	Expires       time.Time `bun:"expires,notnull" json:"expires"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (VerificationRequest) TableName() string      { return "verification_requests" }
func (VerificationRequest) ForeignKeyName() string { return foreignKeyFor("verification_requests") }

var _ bun.BeforeAppendModelHook = (*VerificationRequest)(nil)

func (m *VerificationRequest) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampTimes(query, &m.CreatedAt, nil)
	return nil
}

// ExpiredAt reports whether the request is past its expiry at now.
func (v *VerificationRequest) ExpiredAt(now time.Time) bool {
	return v.Expires.Sub(now) < 0
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// stampTimes fills created_at on insert and moves updated_at on insert
// and update.
// storedNow drops what the database cannot keep: postgres and sqlite
// both hold microseconds.
func storedNow(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func stampTimes(query bun.Query, createdAt, updatedAt *time.Time) {
	now := storedNow(time.Now())
	switch query.(type) {
	case *bun.InsertQuery:
		if createdAt != nil && createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt != nil && updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		if updatedAt != nil {
			*updatedAt = now
		}
	}
}
