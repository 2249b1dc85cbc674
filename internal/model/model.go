// Package model defines domain entities used by services and repositories.
package model

import (
	"strconv"
	"time"
)

// Role is the closed set of access levels an identity can hold.
type Role string

const (
	RoleRegular       Role = "Regular"
	RoleAdministrator Role = "Administrator"
)

// ParseRole maps a stored value to a Role. Unknown values read as RoleRegular.
func ParseRole(s string) Role {
	if Role(s) == RoleAdministrator {
		return RoleAdministrator
	}
	return RoleRegular
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleRegular || r == RoleAdministrator
}

// IsAdmin reports whether r grants administrator access.
func (r Role) IsAdmin() bool { return r == RoleAdministrator }

// User represents an identity stored on the server.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string // unique
	PasswordHash string // bcrypt; empty means "no password set" (dev seed data)
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject returns the user id in its token subject form.
func (u User) Subject() string { return strconv.FormatInt(u.ID, 10) }

// Public returns the redacted view of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// PublicUser is the user view returned to clients. It never carries the password hash.
type PublicUser struct {
	ID        int64     `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser is the data required to persist a new identity.
type NewUser struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// Page is a slice of users plus the total count across all pages.
type Page struct {
	Users    []PublicUser
	Total    int64
	Page     int
	PageSize int
}
