package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerificationToken is a single-use email verification token. The raw
// 64-character value is never stored; only its SHA-256 hex digest is. Email
// captures the address the token was issued for, which may differ from the
// user's current email by the time it is redeemed.
type EmailVerificationToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
}

func (t *EmailVerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *EmailVerificationToken) IsValid() bool {
	return !t.IsUsed && !t.IsExpired()
}

// PhoneOTP is a single-use 6-digit phone verification code. Attempts counts
// redemption attempts that located this record but failed validity; the code
// becomes inert once Attempts reaches MaxAttempts.
type PhoneOTP struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PhoneNumber string
	Code        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IsUsed      bool
	Attempts    int
	MaxAttempts int
}

func (o *PhoneOTP) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

func (o *PhoneOTP) IsValid() bool {
	return !o.IsUsed && !o.IsExpired() && o.Attempts < o.MaxAttempts
}

// DeliveryMethod is the channel a password reset token was sent over.
type DeliveryMethod string

const (
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
)

// PasswordResetToken is a single-use 32-character reset token, stored hashed.
type PasswordResetToken struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TokenHash      string
	DeliveryMethod DeliveryMethod
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IsUsed         bool
}

func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *PasswordResetToken) IsValid() bool {
	return !t.IsUsed && !t.IsExpired()
}

// BlacklistedToken records a revoked refresh token by hash, with the token's
// original expiry so a janitor can reap entries once they would have expired
// anyway. Entries are append-only.
type BlacklistedToken struct {
	TokenHash     string
	UserID        uuid.UUID
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}
