package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid token")
)

// Verification errors
var (
	ErrVerificationTokenNotFound = errors.New("verification token not found")
	ErrVerificationTokenExpired  = errors.New("verification token expired")
	ErrVerificationTokenInvalid  = errors.New("invalid verification token")
	ErrOTPNotFound               = errors.New("otp not found")
	ErrOTPExpiredOrExhausted     = errors.New("otp expired or maximum attempts exceeded")
	ErrAlreadyVerified           = errors.New("contact channel already verified")
	ErrNoEmail                   = errors.New("no email address on file")
	ErrNoPhone                   = errors.New("no phone number on file")
	ErrDeliveryFailed            = errors.New("notification delivery failed")
)

// Validation errors
var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidPhone      = errors.New("phone number must be in E.164 format")
	ErrInvalidFullName   = errors.New("name can only contain letters, spaces, hyphens, apostrophes, and periods")
	ErrMissingIdentifier = errors.New("at least one of phone number or email must be provided")
	ErrWeakPassword      = errors.New("password does not meet requirements")
)
