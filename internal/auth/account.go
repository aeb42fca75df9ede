package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// UserStore is the credential store consumed by the auth services. Every
// write method is atomic: flag updates recompute is_verified in the same
// statement that changes the underlying flag.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	// CreateWithTokens creates the user together with its initial
	// verification token records as a single transaction. Either token may
	// be nil when the corresponding identifier is absent.
	CreateWithTokens(ctx context.Context, user *domain.User, emailToken *domain.EmailVerificationToken, otp *domain.PhoneOTP) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// FindByIdentifier returns every user whose email or phone equals the
	// identifier. More than one result means the identifier is not a safe
	// login key.
	FindByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, user *domain.User) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetEmailVerified(ctx context.Context, id uuid.UUID) error
	SetPhoneVerified(ctx context.Context, id uuid.UUID) error
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

var fullNamePattern = regexp.MustCompile(`^[a-zA-Z\s\-'\.]+$`)

// AccountService handles registration, credential authentication, and
// profile maintenance.
type AccountService struct {
	users     UserStore
	policy    *PasswordPolicy
	verifCfg  VerificationConfig
	dummyHash string
}

// NewAccountService creates a new account service.
func NewAccountService(users UserStore, policy *PasswordPolicy, verifCfg VerificationConfig) *AccountService {
	verifCfg.applyDefaults()
	// Throwaway hash compared against when no user matches an identifier,
	// keeping the unknown-user path close in cost to a real verification.
	dummy, err := HashPassword(uuid.NewString())
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return &AccountService{
		users:     users,
		policy:    policy,
		verifCfg:  verifCfg,
		dummyHash: dummy,
	}
}

// RegisterParams are the inputs to Register.
type RegisterParams struct {
	Email       *string
	PhoneNumber *string
	FullName    string
	Password    string
}

// RegistrationTokens carries the verification material issued during
// registration. Raw values are returned once for delivery and never stored.
type RegistrationTokens struct {
	Channels   []string
	EmailToken string
	OTPCode    string
}

// Register validates the registration, creates the user with both verified
// flags false, and issues one verification token per present identifier.
// The user row and the token rows are committed as one transaction; token
// delivery is the caller's concern and must not affect the outcome.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*domain.User, *RegistrationTokens, error) {
	email, phone, err := s.validateIdentifiers(params.Email, params.PhoneNumber)
	if err != nil {
		return nil, nil, err
	}

	if err := validateFullName(params.FullName); err != nil {
		return nil, nil, err
	}

	if err := s.policy.ValidatePassword(params.Password); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	if email != nil {
		exists, err := s.users.ExistsByEmail(ctx, *email)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, domain.ErrUserAlreadyExists
		}
	}
	if phone != nil {
		exists, err := s.users.ExistsByPhone(ctx, *phone)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, domain.ErrUserAlreadyExists
		}
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PhoneNumber:  phone,
		FullName:     params.FullName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	issued := &RegistrationTokens{}
	var emailToken *domain.EmailVerificationToken
	var otp *domain.PhoneOTP

	if user.HasEmail() {
		raw, token, err := newEmailVerificationToken(user.ID, *user.Email, s.verifCfg.EmailTokenTTL)
		if err != nil {
			return nil, nil, err
		}
		emailToken = token
		issued.EmailToken = raw
		issued.Channels = append(issued.Channels, "email")
	}
	if user.HasPhone() {
		code, record, err := newPhoneOTP(user.ID, *user.PhoneNumber, s.verifCfg.OTPTTL, s.verifCfg.OTPMaxAttempts)
		if err != nil {
			return nil, nil, err
		}
		otp = record
		issued.OTPCode = code
		issued.Channels = append(issued.Channels, "phone")
	}

	if err := s.users.CreateWithTokens(ctx, user, emailToken, otp); err != nil {
		return nil, nil, err
	}

	return user, issued, nil
}

// Authenticate verifies an identifier (email or phone number) and password.
// It returns the matching identity on success, ErrAccountDeactivated when
// the password is valid but the account is inactive, and
// ErrInvalidCredentials otherwise. Updating last_login is the caller's side
// effect on success only.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)

	switch ClassifyIdentifier(identifier) {
	case IdentifierEmail:
		user, err = s.users.GetByEmail(ctx, NormalizeEmail(identifier))
	case IdentifierPhone:
		user, err = s.users.GetByPhone(ctx, identifier)
	default:
		var matches []*domain.User
		matches, err = s.users.FindByIdentifier(ctx, identifier)
		if err == nil {
			switch len(matches) {
			case 0:
				err = domain.ErrUserNotFound
			case 1:
				user = matches[0]
			default:
				// Should be impossible under unique constraints. Refuse to
				// pick one.
				err = domain.ErrInvalidCredentials
			}
		}
	}

	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidCredentials) {
			// Burn a hash comparison so the unknown-identifier path costs
			// about the same as a wrong-password one.
			VerifyPassword(password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	return user, nil
}

// RecordLogin sets the user's last_login timestamp.
func (s *AccountService) RecordLogin(ctx context.Context, userID uuid.UUID) error {
	return s.users.SetLastLogin(ctx, userID, time.Now())
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword verifies the current password and replaces it with a new
// one satisfying the policy.
func (s *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, userID, hash)
}

// UpdateProfileParams are the inputs to UpdateProfile. Nil fields are left
// unchanged.
type UpdateProfileParams struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
}

// UpdateProfile applies a profile update. Changing an identifier resets the
// corresponding verified flag; is_verified is recomputed from the two flags
// in the same write.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.FullName != nil {
		if err := validateFullName(*params.FullName); err != nil {
			return nil, err
		}
		user.FullName = *params.FullName
	}

	if params.Email != nil {
		email := NormalizeEmail(*params.Email)
		if email == "" {
			if user.PhoneNumber == nil && params.PhoneNumber == nil {
				return nil, domain.ErrMissingIdentifier
			}
			user.Email = nil
			user.EmailVerified = false
		} else {
			if !ValidEmail(email) {
				return nil, domain.ErrInvalidEmail
			}
			if user.Email == nil || *user.Email != email {
				exists, err := s.users.ExistsByEmail(ctx, email)
				if err != nil {
					return nil, err
				}
				if exists {
					return nil, domain.ErrUserAlreadyExists
				}
				user.Email = &email
				user.EmailVerified = false
			}
		}
	}

	if params.PhoneNumber != nil {
		phone := *params.PhoneNumber
		if phone == "" {
			if user.Email == nil {
				return nil, domain.ErrMissingIdentifier
			}
			user.PhoneNumber = nil
			user.PhoneVerified = false
		} else {
			if !ValidPhone(phone) {
				return nil, domain.ErrInvalidPhone
			}
			if user.PhoneNumber == nil || *user.PhoneNumber != phone {
				exists, err := s.users.ExistsByPhone(ctx, phone)
				if err != nil {
					return nil, err
				}
				if exists {
					return nil, domain.ErrUserAlreadyExists
				}
				user.PhoneNumber = &phone
				user.PhoneVerified = false
			}
		}
	}

	if user.Email == nil && user.PhoneNumber == nil {
		return nil, domain.ErrMissingIdentifier
	}

	user.IsVerified = user.FullyVerified()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate soft-deactivates the account after re-checking the password.
func (s *AccountService) Deactivate(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	return s.users.Deactivate(ctx, userID)
}

func (s *AccountService) validateIdentifiers(email, phone *string) (*string, *string, error) {
	var normEmail, normPhone *string

	if email != nil && *email != "" {
		e := NormalizeEmail(*email)
		if !ValidEmail(e) {
			return nil, nil, domain.ErrInvalidEmail
		}
		normEmail = &e
	}
	if phone != nil && *phone != "" {
		p := *phone
		if !ValidPhone(p) {
			return nil, nil, domain.ErrInvalidPhone
		}
		normPhone = &p
	}

	if normEmail == nil && normPhone == nil {
		return nil, nil, domain.ErrMissingIdentifier
	}
	return normEmail, normPhone, nil
}

func validateFullName(name string) error {
	if len(name) < 2 || len(name) > 100 {
		return fmt.Errorf("%w: must be 2-100 characters", domain.ErrInvalidFullName)
	}
	if !fullNamePattern.MatchString(name) {
		return domain.ErrInvalidFullName
	}
	return nil
}
