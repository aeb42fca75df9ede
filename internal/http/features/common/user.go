package common

import (
	"time"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// UserResponse is the public profile representation returned by the API.
type UserResponse struct {
	ID            string     `json:"id"`
	Email         *string    `json:"email"`
	PhoneNumber   *string    `json:"phone_number"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	IsVerified    bool       `json:"is_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// NewUserResponse converts a domain user to its API representation.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		PhoneNumber:   user.PhoneNumber,
		FullName:      user.FullName,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		IsVerified:    user.IsVerified,
		CreatedAt:     user.CreatedAt,
		LastLogin:     user.LastLogin,
	}
}
