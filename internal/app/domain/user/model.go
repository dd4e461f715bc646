// Package user defines user identities and roles.
package user

import "time"

// Role controls what a user may do.
type Role string

const (
	RoleMaster Role = "master"
	RoleUser   Role = "user"
	RoleMock   Role = "mock"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleUser, RoleMock:
		return true
	}
	return false
}

// User is a registered user. Nickname doubles as the login identifier.
type User struct {
	UID          int64
	Nickname     string
	PasswordHash string
	Role         Role

	// Tokens issued at the most recent login; cleared on logout.
	AccessToken  string
	RefreshToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}
