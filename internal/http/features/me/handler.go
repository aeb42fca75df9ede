package me

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stardust/classifieds-auth/internal/auth"
	"github.com/stardust/classifieds-auth/internal/domain"
	"github.com/stardust/classifieds-auth/internal/http/features/common"
	"github.com/stardust/classifieds-auth/internal/http/middleware"
	"github.com/stardust/classifieds-auth/internal/httputil"
	"github.com/stardust/classifieds-auth/internal/validate"
)

// Handler handles user profile endpoints.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService) *Handler {
	return &Handler{logger: logger, accounts: accounts}
}

// GetMe returns the authenticated user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user", "error", err, "user_id", userID)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "failed to load user")
		return
	}

	httputil.JSON(w, http.StatusOK, common.NewUserResponse(user))
}

// UpdateMeRequest carries a partial profile update. Absent fields are left
// unchanged; an empty string clears the identifier when the other one
// remains.
type UpdateMeRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

// UpdateMe applies a partial profile update. Changing an identifier resets
// its verified flag until the new value is re-verified.
// PATCH /v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req UpdateMeRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, auth.UpdateProfileParams{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.ValidationError(w, r, map[string]string{"email": "must be a valid email address"})
		case errors.Is(err, domain.ErrInvalidPhone):
			httputil.ValidationError(w, r, map[string]string{"phone_number": "must be a valid phone number in E.164 format"})
		case errors.Is(err, domain.ErrInvalidFullName):
			httputil.ValidationError(w, r, map[string]string{"full_name": "must be 2-100 characters of letters, spaces, hyphens, apostrophes, or periods"})
		case errors.Is(err, domain.ErrMissingIdentifier):
			httputil.ValidationError(w, r, map[string]string{"identifier": "an account must keep at least one of email or phone_number"})
		case errors.Is(err, domain.ErrUserAlreadyExists):
			httputil.Error(w, r, http.StatusConflict, httputil.CodeUserExists, "that email or phone number is already in use")
		default:
			h.logger.Error("profile update failed", "error", err, "user_id", userID)
			httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "profile update failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, common.NewUserResponse(user))
}

// DeactivateRequest carries the password re-check for account deactivation.
type DeactivateRequest struct {
	Password string `json:"password" validate:"required"`
}

// Deactivate soft-deactivates the authenticated account after re-checking
// the password.
// POST /v1/me/deactivate
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req DeactivateRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		common.WriteValidationFailure(w, r, err)
		return
	}

	if err := h.accounts.Deactivate(r.Context(), userID, req.Password); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeInvalidCredentials, "password is incorrect")
			return
		}
		h.logger.Error("deactivation failed", "error", err, "user_id", userID)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "deactivation failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "account deactivated"})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	return userID, true
}
