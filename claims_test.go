package auth_test

import (
	"testing"
	"time"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTClaims_Identifiers(t *testing.T) {
	userID := auth.NewID()
	sessionID := auth.NewID()

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		SID:              sessionID.String(),
	}

	assert.Equal(t, userID.String(), claims.Subject())

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	sid, err := claims.SessionID()
	require.NoError(t, err)
	assert.Equal(t, sessionID, sid)

	bad := &auth.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "nope"}, SID: "nope"}
	_, err = bad.UserID()
	assert.Error(t, err)
	_, err = bad.SessionID()
	assert.Error(t, err)
}

func TestJWTClaims_Roles(t *testing.T) {
	tests := []struct {
		name      string
		role      string
		hasAdmin  bool
		atLeastU  bool
		atLeastAd bool
	}{
		{"user", "user", false, true, false},
		{"admin", "admin", true, true, true},
		{"empty", "", false, false, false},
		{"unknown", "owner", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &auth.JWTClaims{UserRole: tt.role}
			assert.Equal(t, tt.role, claims.Role())
			assert.Equal(t, tt.hasAdmin, claims.HasRole("admin"))
			assert.Equal(t, tt.atLeastU, claims.IsAtLeast("user"))
			assert.Equal(t, tt.atLeastAd, claims.IsAtLeast("admin"))
		})
	}
}

func TestJWTClaims_Times(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	empty := &auth.JWTClaims{}
	assert.True(t, empty.Expires().IsZero())
	assert.True(t, empty.IssuedAt().IsZero())
	assert.True(t, empty.IsExpired(now))

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))
	assert.False(t, claims.IsExpired(now))
	assert.True(t, claims.IsExpired(now.Add(time.Hour)))
	assert.True(t, claims.IsExpired(now.Add(2*time.Hour)))
}

func TestJWTClaims_AuthClaimsInterface(t *testing.T) {
	var c jwtware.AuthClaims = &auth.JWTClaims{UserRole: "admin"}
	assert.True(t, c.HasRole("admin"))
}

func TestUserRole(t *testing.T) {
	role, ok := auth.ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)

	_, ok = auth.ParseRole("owner")
	assert.False(t, ok)

	assert.Equal(t, auth.RoleUser, auth.DefaultRole)
	assert.True(t, auth.RoleAdmin.IsAtLeast(auth.RoleUser))
	assert.False(t, auth.RoleUser.IsAtLeast(auth.RoleAdmin))
	assert.False(t, auth.UserRole("owner").IsAtLeast(auth.RoleUser))
}
