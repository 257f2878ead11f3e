package auth

import "strings"

// UserRole is the role carried in the profile and in every access token.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// DefaultRole is assigned to every new profile.
const DefaultRole = RoleUser

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (UserRole, bool) {
	r := UserRole(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r UserRole) String() string { return string(r) }

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleUser:  1,
		RoleAdmin: 2,
	}

	userLevel, userExists := roleHierarchy[r]
	minLevel, minExists := roleHierarchy[minRole]

	if !userExists || !minExists {
		return false
	}

	return userLevel >= minLevel
}
