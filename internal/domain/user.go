package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// User represents the account. At least one of Email or PhoneNumber is
// always set; both are unique where present.
type User struct {
	ID            uuid.UUID
	Email         *string
	PhoneNumber   *string
	FullName      string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	PhoneVerified bool
	IsVerified    bool
	IsActive      bool
	CreatedAt     time.Time
	LastLogin     *time.Time
}

// HasEmail reports whether the user has an email address on file.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// HasPhone reports whether the user has a phone number on file.
func (u *User) HasPhone() bool {
	return u.PhoneNumber != nil && *u.PhoneNumber != ""
}

// FullyVerified reports whether at least one contact channel is verified.
// IsVerified is always persisted as this value.
func (u *User) FullyVerified() bool {
	return u.EmailVerified || u.PhoneVerified
}
