package password

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stardust/classifieds-auth/internal/auth"
	"github.com/stardust/classifieds-auth/internal/domain"
	"github.com/stardust/classifieds-auth/internal/http/features/common"
	"github.com/stardust/classifieds-auth/internal/http/middleware"
	"github.com/stardust/classifieds-auth/internal/httputil"
	"github.com/stardust/classifieds-auth/internal/validate"
)

// Handler handles registration, login, and password management endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	sessions     *auth.SessionService
	verification *auth.VerificationService
	email        auth.EmailSender
	sms          auth.SMSSender
}

// NewHandler creates a new password handler. Either sender may be nil when
// the delivery channel is not configured.
func NewHandler(
	logger *slog.Logger,
	accounts *auth.AccountService,
	sessions *auth.SessionService,
	verification *auth.VerificationService,
	email auth.EmailSender,
	sms auth.SMSSender,
) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		sessions:     sessions,
		verification: verification,
		email:        email,
		sms:          sms,
	}
}

// RegisterRequest represents a registration request. At least one of email
// and phone_number must be present.
type RegisterRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,e164"`
	FullName    string  `json:"full_name" validate:"required,min=2,max=100"`
	Password    string  `json:"password" validate:"required,min=8"`
}

// RegisterResponse represents a successful registration.
type RegisterResponse struct {
	Message              string   `json:"message"`
	UserID               string   `json:"user_id"`
	VerificationRequired []string `json:"verification_required"`
}

// LoginRequest represents a login request. Identifier is an email address or
// an E.164 phone number.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	TokenType    string              `json:"token_type"`
	ExpiresIn    int                 `json:"expires_in"`
	User         common.UserResponse `json:"user"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// Register handles user registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	user, tokens, err := h.accounts.Register(r.Context(), auth.RegisterParams{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			httputil.Error(w, r, http.StatusConflict, httputil.CodeUserExists, "an account with that email or phone number already exists")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.ValidationError(w, r, map[string]string{"email": "must be a valid email address"})
		case errors.Is(err, domain.ErrInvalidPhone):
			httputil.ValidationError(w, r, map[string]string{"phone_number": "must be a valid phone number in E.164 format"})
		case errors.Is(err, domain.ErrInvalidFullName):
			httputil.ValidationError(w, r, map[string]string{"full_name": "must be 2-100 characters of letters, spaces, hyphens, apostrophes, or periods"})
		case errors.Is(err, domain.ErrMissingIdentifier):
			httputil.ValidationError(w, r, map[string]string{"identifier": "either email or phone_number is required"})
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.ValidationError(w, r, map[string]string{"password": passwordPolicyMessage})
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "registration failed")
		}
		return
	}

	// Delivery happens after the commit and never fails the registration;
	// the user can request a resend.
	h.deliverRegistrationTokens(r, user, tokens)

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		Message:              "registration successful. please verify your account.",
		UserID:               user.ID.String(),
		VerificationRequired: tokens.Channels,
	})
}

// Login handles user login with an email or phone identifier.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeInvalidCredentials, "invalid identifier or password")
		case errors.Is(err, domain.ErrAccountDeactivated):
			httputil.Error(w, r, http.StatusForbidden, httputil.CodeAccountDeactivated, "this account has been deactivated")
		default:
			h.logger.Error("authentication failed", "error", err)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "authentication failed")
		}
		return
	}

	if err := h.accounts.RecordLogin(r.Context(), user.ID); err != nil {
		h.logger.Error("failed to record login", "error", err, "user_id", user.ID)
	}

	tokens, err := h.sessions.Issue(r.Context(), user)
	if err != nil {
		h.logger.Error("failed to issue tokens", "error", err, "user_id", user.ID)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to issue tokens")
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
		User:         common.NewUserResponse(user),
	})
}

// ChangePasswordRequest represents an authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword handles authenticated password changes.
// POST /v1/auth/password/change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeInvalidCredentials, "current password is incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.ValidationError(w, r, map[string]string{"new_password": passwordPolicyMessage})
		default:
			h.logger.Error("failed to change password", "error", err, "user_id", userID)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to change password")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "password changed successfully"})
}

// ResetRequestRequest represents a password reset request.
type ResetRequestRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// ResetRequestResponse acknowledges a reset request without revealing
// whether the identifier matched an account.
type ResetRequestResponse struct {
	Message        string `json:"message"`
	DeliveryMethod string `json:"delivery_method"`
}

// RequestPasswordReset handles password reset requests.
// POST /v1/auth/password/reset
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	method, err := h.verification.RequestPasswordReset(r.Context(), req.Identifier)
	if err != nil {
		// The response is identical whether or not the identifier matched an
		// account, and delivery failures must not leak that a match existed.
		h.logger.Error("password reset request failed", "error", err, "method", method)
	}

	httputil.JSON(w, http.StatusOK, ResetRequestResponse{
		Message:        "if an account exists for that identifier, reset instructions have been sent",
		DeliveryMethod: string(method),
	})
}

// ResetConfirmRequest represents a password reset confirmation.
type ResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ConfirmPasswordReset handles password reset confirmations.
// POST /v1/auth/password/reset/confirm
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	if err := h.verification.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.ValidationError(w, r, map[string]string{"new_password": passwordPolicyMessage})
		case errors.Is(err, domain.ErrVerificationTokenExpired):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "reset token expired")
		case errors.Is(err, domain.ErrVerificationTokenInvalid):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "invalid or already used reset token")
		default:
			h.logger.Error("password reset confirmation failed", "error", err)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to reset password")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "password reset successful"})
}

const passwordPolicyMessage = "must be at least 8 characters with an uppercase letter, a lowercase letter, a digit, and a special character"

func (h *Handler) deliverRegistrationTokens(r *http.Request, user *domain.User, tokens *auth.RegistrationTokens) {
	if tokens.EmailToken != "" {
		if h.email == nil {
			h.logger.Warn("email delivery not configured", "user_id", user.ID)
		} else if err := h.email.SendVerificationEmail(*user.Email, tokens.EmailToken); err != nil {
			h.logger.Error("failed to send verification email", "error", err, "user_id", user.ID)
		} else {
			h.logger.Info("verification email sent", "user_id", user.ID)
		}
	}

	if tokens.OTPCode != "" {
		if h.sms == nil {
			h.logger.Warn("sms delivery not configured", "user_id", user.ID)
		} else if err := h.sms.SendVerificationSMS(r.Context(), *user.PhoneNumber, tokens.OTPCode); err != nil {
			h.logger.Error("failed to send verification sms", "error", err, "user_id", user.ID)
		} else {
			h.logger.Info("verification sms sent", "user_id", user.ID)
		}
	}
}
