package users

import (
	"time"

	"veriglow-backend/internal/shared/auth"
)

// DefaultPlan is assigned to every new account until billing changes it.
const DefaultPlan = "free"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Picture      string     `json:"picture,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Plan         string     `json:"plan"`
	Banned       bool       `json:"banned"`
	FailedLogins int        `json:"-"`
	LastFailedAt *time.Time `json:"-"`
	LockoutUntil *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Locked reports whether the account is under a login lockout at now.
func (u User) Locked(now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}

// Permissions gated by role.
const (
	PermRead     = "read"
	PermWrite    = "write"
	PermDelete   = "delete"
	PermModerate = "moderate"
	PermAdmin    = "admin"
)

var rolePermissions = map[string]map[string]struct{}{
	auth.RoleUser: {
		PermRead:  {},
		PermWrite: {},
	},
	auth.RoleModerator: {
		PermRead:     {},
		PermWrite:    {},
		PermModerate: {},
	},
	auth.RoleAdmin: {
		PermRead:     {},
		PermWrite:    {},
		PermDelete:   {},
		PermModerate: {},
		PermAdmin:    {},
	},
}

// RoleAllows reports whether the role grants the permission.
func RoleAllows(role, perm string) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}
