package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stardust/classifieds-auth/internal/auth"
	"github.com/stardust/classifieds-auth/internal/config"
	"github.com/stardust/classifieds-auth/internal/http/features/me"
	"github.com/stardust/classifieds-auth/internal/http/features/password"
	"github.com/stardust/classifieds-auth/internal/http/features/session"
	"github.com/stardust/classifieds-auth/internal/http/features/verify"
	"github.com/stardust/classifieds-auth/internal/http/middleware"
	"github.com/stardust/classifieds-auth/internal/httputil"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	AccountService      *auth.AccountService
	SessionService      *auth.SessionService
	VerificationService *auth.VerificationService
	EmailSender         auth.EmailSender
	SMSSender           auth.SMSSender
	DB                  *sql.DB
	RateLimitConfig     config.RateLimitConfig
	SecurityHeaders     config.SecurityHeadersConfig
	Validation          config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", healthHandler(cfg))

	// Create rate limiters for different endpoint scopes
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	requireAuth := middleware.Auth(cfg.SessionService)

	passwordHandler := password.NewHandler(
		cfg.Logger,
		cfg.AccountService,
		cfg.SessionService,
		cfg.VerificationService,
		cfg.EmailSender,
		cfg.SMSSender,
	)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/register", passwordHandler.Register)
		r.Post("/v1/auth/login", passwordHandler.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["reset"])
		r.Post("/v1/auth/password/reset", passwordHandler.RequestPasswordReset)
		r.Post("/v1/auth/password/reset/confirm", passwordHandler.ConfirmPasswordReset)
	})
	r.With(requireAuth).Post("/v1/auth/password/change", passwordHandler.ChangePassword)

	sessionHandler := session.NewHandler(cfg.Logger, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["refresh"])
		r.Post("/v1/auth/token/refresh", sessionHandler.Refresh)
	})
	r.With(requireAuth).Post("/v1/auth/logout", sessionHandler.Logout)

	verifyHandler := verify.NewHandler(cfg.Logger, cfg.AccountService, cfg.VerificationService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["otp"])
		r.Post("/v1/auth/verify/email", verifyHandler.VerifyEmail)
		r.Post("/v1/auth/verify/phone", verifyHandler.VerifyPhone)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiters["otp"])
		r.Post("/v1/auth/verify/email/resend", verifyHandler.ResendEmail)
		r.Post("/v1/auth/verify/phone/resend", verifyHandler.ResendPhone)
	})

	meHandler := me.NewHandler(cfg.Logger, cfg.AccountService)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiters["profile"])
		r.Get("/v1/me", meHandler.GetMe)
		r.Patch("/v1/me", meHandler.UpdateMe)
		r.Post("/v1/me/deactivate", meHandler.Deactivate)
	})

	return r
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}

		if cfg.DB != nil {
			if err := cfg.DB.PingContext(r.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
			} else {
				status["database"] = "ok"
			}
		}
		if cfg.EmailSender != nil {
			status["email"] = "configured"
		} else {
			status["email"] = "disabled"
		}
		if cfg.SMSSender != nil {
			status["sms"] = "configured"
		} else {
			status["sms"] = "disabled"
		}

		code := http.StatusOK
		if status["status"] != "ok" {
			code = http.StatusServiceUnavailable
		}
		httputil.JSON(w, code, status)
	}
}
