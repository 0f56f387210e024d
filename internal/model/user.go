package model

import "time"

// Role is the permission level of a user.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleSuperAdmin Role = "superadmin"
)

// User is an account able to sign in. Only admins use the site today.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// IsAdmin reports whether the user may use the admin area.
func (u *User) IsAdmin() bool {
	return u.Role == RoleSuperAdmin
}
