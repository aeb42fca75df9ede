package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// EmailTokenStore persists email verification tokens. Replace invalidates
// every unused token for the token's user and inserts the new one in a
// single transaction; Consume atomically marks the unused token matching the
// hash as used, so a token can be redeemed at most once even under
// concurrent requests.
type EmailTokenStore interface {
	Replace(ctx context.Context, token *domain.EmailVerificationToken) error
	// Consume returns ErrVerificationTokenNotFound when no unused token
	// matches and ErrVerificationTokenExpired when the matching unused
	// token is past its expiry (the token is left untouched; it is already
	// unusable).
	Consume(ctx context.Context, tokenHash string) (*domain.EmailVerificationToken, error)
}

// PhoneOTPStore persists phone verification codes.
type PhoneOTPStore interface {
	Replace(ctx context.Context, otp *domain.PhoneOTP) error
	// FindActive returns the most recent unused OTP for the phone number.
	// Code comparison is the service's job so that wrong guesses charge an
	// attempt against the active record.
	FindActive(ctx context.Context, phone string) (*domain.PhoneOTP, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	// Consume marks the OTP used only while it is still unused, unexpired,
	// and under its attempt limit; otherwise it returns
	// ErrOTPExpiredOrExhausted.
	Consume(ctx context.Context, id uuid.UUID) error
}

// ResetTokenStore persists password reset tokens.
type ResetTokenStore interface {
	Replace(ctx context.Context, token *domain.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
}

// EmailSender delivers verification and reset emails.
type EmailSender interface {
	SendVerificationEmail(to, token string) error
	SendPasswordResetEmail(to, token string) error
}

// SMSSender delivers verification and reset SMS messages.
type SMSSender interface {
	SendVerificationSMS(ctx context.Context, to, code string) error
	SendPasswordResetSMS(ctx context.Context, to, token string) error
}

// VerificationConfig holds token lifetimes and OTP limits.
type VerificationConfig struct {
	EmailTokenTTL  time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
	ResetTokenTTL  time.Duration
}

func (c *VerificationConfig) applyDefaults() {
	if c.EmailTokenTTL == 0 {
		c.EmailTokenTTL = 24 * time.Hour
	}
	if c.OTPTTL == 0 {
		c.OTPTTL = 10 * time.Minute
	}
	if c.OTPMaxAttempts == 0 {
		c.OTPMaxAttempts = 3
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = time.Hour
	}
}

// VerificationService owns the verification token lifecycle: issuance
// (which supersedes prior tokens of the same family), delivery, and
// redemption with the verified-flag update.
type VerificationService struct {
	config      VerificationConfig
	users       UserStore
	emailTokens EmailTokenStore
	otps        PhoneOTPStore
	resetTokens ResetTokenStore
	email       EmailSender
	sms         SMSSender
	policy      *PasswordPolicy
}

// NewVerificationService creates a new verification service. Either sender
// may be nil when the channel is not configured; issuance on a channel
// without a sender reports delivery failure.
func NewVerificationService(
	config VerificationConfig,
	users UserStore,
	emailTokens EmailTokenStore,
	otps PhoneOTPStore,
	resetTokens ResetTokenStore,
	email EmailSender,
	sms SMSSender,
	policy *PasswordPolicy,
) *VerificationService {
	config.applyDefaults()
	return &VerificationService{
		config:      config,
		users:       users,
		emailTokens: emailTokens,
		otps:        otps,
		resetTokens: resetTokens,
		email:       email,
		sms:         sms,
		policy:      policy,
	}
}

// SendEmailVerification issues a fresh email verification token, superseding
// any active one, and attempts delivery. A delivery failure is reported as
// ErrDeliveryFailed but does not roll back the token; the user can request a
// resend.
func (s *VerificationService) SendEmailVerification(ctx context.Context, user *domain.User) error {
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}
	if !user.HasEmail() {
		return domain.ErrNoEmail
	}

	raw, token, err := newEmailVerificationToken(user.ID, *user.Email, s.config.EmailTokenTTL)
	if err != nil {
		return err
	}
	if err := s.emailTokens.Replace(ctx, token); err != nil {
		return fmt.Errorf("store email verification token: %w", err)
	}

	if s.email == nil {
		return domain.ErrDeliveryFailed
	}
	if err := s.email.SendVerificationEmail(*user.Email, raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

// SendPhoneVerification issues a fresh OTP, superseding any active one, and
// attempts SMS delivery.
func (s *VerificationService) SendPhoneVerification(ctx context.Context, user *domain.User) error {
	if user.PhoneVerified {
		return domain.ErrAlreadyVerified
	}
	if !user.HasPhone() {
		return domain.ErrNoPhone
	}

	code, otp, err := newPhoneOTP(user.ID, *user.PhoneNumber, s.config.OTPTTL, s.config.OTPMaxAttempts)
	if err != nil {
		return err
	}
	if err := s.otps.Replace(ctx, otp); err != nil {
		return fmt.Errorf("store phone otp: %w", err)
	}

	if s.sms == nil {
		return domain.ErrDeliveryFailed
	}
	if err := s.sms.SendVerificationSMS(ctx, *user.PhoneNumber, code); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

// VerifyEmailToken redeems an email verification token, marks the user's
// email verified, and recomputes the overall verified status. The token is
// consumed at most once.
func (s *VerificationService) VerifyEmailToken(ctx context.Context, rawToken string) (*domain.User, error) {
	token, err := s.emailTokens.Consume(ctx, HashToken(rawToken))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationTokenNotFound):
			return nil, domain.ErrVerificationTokenInvalid
		case errors.Is(err, domain.ErrVerificationTokenExpired):
			return nil, domain.ErrVerificationTokenExpired
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	// The token was bound to the email it was issued for. If the user has
	// since changed addresses the token no longer proves ownership of the
	// current one.
	if user.Email == nil || *user.Email != token.Email {
		return nil, domain.ErrVerificationTokenInvalid
	}

	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, user.ID)
}

// VerifyPhoneOTP redeems a phone OTP against the most recent active code for
// the phone number. A wrong code charges one attempt; once the attempt limit
// is reached even the correct code is rejected as exhausted rather than
// invalid.
func (s *VerificationService) VerifyPhoneOTP(ctx context.Context, phone, code string) (*domain.User, error) {
	otp, err := s.otps.FindActive(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, err
	}

	if !otp.IsValid() {
		return nil, domain.ErrOTPExpiredOrExhausted
	}

	if !constantTimeCompare([]byte(code), []byte(otp.Code)) {
		if err := s.otps.IncrementAttempts(ctx, otp.ID); err != nil {
			return nil, err
		}
		return nil, domain.ErrOTPNotFound
	}

	if err := s.otps.Consume(ctx, otp.ID); err != nil {
		return nil, err
	}

	if err := s.users.SetPhoneVerified(ctx, otp.UserID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, otp.UserID)
}

// RequestPasswordReset issues a reset token for the account matching the
// identifier and delivers it over the matching channel. An unknown
// identifier is not an error: the caller responds identically either way to
// avoid account enumeration. A delivery failure after the token is stored is
// reported as ErrDeliveryFailed.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, identifier string) (domain.DeliveryMethod, error) {
	var (
		user   *domain.User
		err    error
		method domain.DeliveryMethod
	)

	if strings.Contains(identifier, "@") {
		method = domain.DeliveryEmail
		user, err = s.users.GetByEmail(ctx, NormalizeEmail(identifier))
	} else {
		method = domain.DeliverySMS
		user, err = s.users.GetByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return method, nil
		}
		return method, err
	}

	raw, token, err := newPasswordResetToken(user.ID, method, s.config.ResetTokenTTL)
	if err != nil {
		return method, err
	}
	if err := s.resetTokens.Replace(ctx, token); err != nil {
		return method, fmt.Errorf("store password reset token: %w", err)
	}

	switch method {
	case domain.DeliveryEmail:
		if s.email == nil {
			return method, domain.ErrDeliveryFailed
		}
		if err := s.email.SendPasswordResetEmail(*user.Email, raw); err != nil {
			return method, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
	case domain.DeliverySMS:
		if s.sms == nil {
			return method, domain.ErrDeliveryFailed
		}
		if err := s.sms.SendPasswordResetSMS(ctx, *user.PhoneNumber, raw); err != nil {
			return method, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
	}
	return method, nil
}

// ConfirmPasswordReset redeems a reset token and replaces the user's
// password. The token is claimed before the password write, so two
// concurrent confirmations cannot both succeed.
func (s *VerificationService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	token, err := s.resetTokens.Consume(ctx, HashToken(rawToken))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationTokenNotFound):
			return domain.ErrVerificationTokenInvalid
		case errors.Is(err, domain.ErrVerificationTokenExpired):
			return domain.ErrVerificationTokenExpired
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, token.UserID, hash)
}

func newEmailVerificationToken(userID uuid.UUID, email string, ttl time.Duration) (string, *domain.EmailVerificationToken, error) {
	raw, err := GenerateToken(EmailTokenLength)
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	return raw, &domain.EmailVerificationToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func newPhoneOTP(userID uuid.UUID, phone string, ttl time.Duration, maxAttempts int) (string, *domain.PhoneOTP, error) {
	code, err := GenerateOTP(OTPLength)
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	return code, &domain.PhoneOTP{
		ID:          uuid.New(),
		UserID:      userID,
		PhoneNumber: phone,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		MaxAttempts: maxAttempts,
	}, nil
}

func newPasswordResetToken(userID uuid.UUID, method domain.DeliveryMethod, ttl time.Duration) (string, *domain.PasswordResetToken, error) {
	raw, err := GenerateToken(ResetTokenLength)
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	return raw, &domain.PasswordResetToken{
		ID:             uuid.New(),
		UserID:         userID,
		TokenHash:      HashToken(raw),
		DeliveryMethod: method,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}, nil
}
