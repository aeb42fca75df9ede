package verify

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

// Handler handles email and phone verification endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	verification *auth.VerificationService
}

// NewHandler creates a new verification handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService, verification *auth.VerificationService) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		verification: verification,
	}
}

// VerifyEmailRequest carries the verification key from the email link.
type VerifyEmailRequest struct {
	Key string `json:"key" validate:"required,len=64"`
}

// VerifyPhoneRequest carries the phone number and the OTP code sent to it.
type VerifyPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

// VerifiedResponse returns the updated profile after a successful
// verification.
type VerifiedResponse struct {
	Message string              `json:"message"`
	User    common.UserResponse `json:"user"`
}

// VerifyEmail redeems an email verification token.
// POST /v1/auth/verify/email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	user, err := h.verification.VerifyEmailToken(r.Context(), req.Key)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationTokenExpired):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "verification token expired")
		case errors.Is(err, domain.ErrVerificationTokenInvalid):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "invalid or already used verification token")
		default:
			h.logger.Error("email verification failed", "error", err)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, VerifiedResponse{
		Message: "email verified successfully",
		User:    common.NewUserResponse(user),
	})
}

// VerifyPhone redeems a phone verification code.
// POST /v1/auth/verify/phone
func (h *Handler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req VerifyPhoneRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	user, err := h.verification.VerifyPhoneOTP(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOTPNotFound):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "invalid verification code")
		case errors.Is(err, domain.ErrOTPExpiredOrExhausted):
			httputil.Error(w, r, http.StatusBadRequest, httputil.CodeInvalidToken, "verification code expired or attempt limit reached")
		default:
			h.logger.Error("phone verification failed", "error", err)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, VerifiedResponse{
		Message: "phone number verified successfully",
		User:    common.NewUserResponse(user),
	})
}

// ResendEmail issues and delivers a fresh email verification token for the
// authenticated user, superseding any active one.
// POST /v1/auth/verify/email/resend
func (h *Handler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.verification.SendEmailVerification(r.Context(), user); err != nil {
		h.writeResendError(w, r, err, httputil.CodeNoEmail, "no email address on this account")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "verification email sent"})
}

// ResendPhone issues and delivers a fresh OTP for the authenticated user,
// superseding any active one.
// POST /v1/auth/verify/phone/resend
func (h *Handler) ResendPhone(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.verification.SendPhoneVerification(r.Context(), user); err != nil {
		h.writeResendError(w, r, err, httputil.CodeNoPhone, "no phone number on this account")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, "authentication required")
		return nil, false
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user", "error", err, "user_id", userID)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to load user")
		return nil, false
	}
	return user, true
}

func (h *Handler) writeResendError(w http.ResponseWriter, r *http.Request, err error, missingCode, missingMessage string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyVerified):
		httputil.Error(w, r, http.StatusBadRequest, httputil.CodeAlreadyVerified, "already verified")
	case errors.Is(err, domain.ErrNoEmail), errors.Is(err, domain.ErrNoPhone):
		httputil.Error(w, r, http.StatusBadRequest, missingCode, missingMessage)
	case errors.Is(err, domain.ErrDeliveryFailed):
		h.logger.Error("verification delivery failed", "error", err)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeSendFailed, "failed to send verification. please try again later")
	default:
		h.logger.Error("verification resend failed", "error", err)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to send verification")
	}
}
