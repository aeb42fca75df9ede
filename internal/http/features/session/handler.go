package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stardust/classifieds-auth/internal/auth"
	"github.com/stardust/classifieds-auth/internal/domain"
	"github.com/stardust/classifieds-auth/internal/http/features/common"
	"github.com/stardust/classifieds-auth/internal/httputil"
)

// Handler handles token refresh and logout endpoints.
type Handler struct {
	logger   *slog.Logger
	sessions *auth.SessionService
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, sessions *auth.SessionService) *Handler {
	return &Handler{logger: logger, sessions: sessions}
}

// RefreshRequest carries the refresh token presented for exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the newly minted access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresh exchanges a valid refresh token for a new access token.
// POST /v1/auth/token/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, r, http.StatusBadRequest, httputil.CodeValidation, "refresh_token is required")
		return
	}

	access, expiresIn, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeInvalidToken, "invalid or expired refresh token")
			return
		}
		h.logger.Error("token refresh failed", "error", err)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "token refresh failed")
		return
	}

	httputil.JSON(w, http.StatusOK, RefreshResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	})
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout blacklists the presented refresh token. The caller must also hold a
// valid access token; revocation applies to the refresh token only, access
// tokens expire on their own.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, r, http.StatusBadRequest, httputil.CodeValidation, "refresh_token is required")
		return
	}

	if err := h.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			httputil.Error(w, r, http.StatusUnauthorized, httputil.CodeInvalidToken, "invalid refresh token")
			return
		}
		h.logger.Error("logout failed", "error", err)
		httputil.Error(w, r, http.StatusInternalServerError, httputil.CodeInternal, "logout failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}
