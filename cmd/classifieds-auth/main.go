package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stardust/classifieds-auth/internal/auth"
	"github.com/stardust/classifieds-auth/internal/config"
	httpserver "github.com/stardust/classifieds-auth/internal/http"
	"github.com/stardust/classifieds-auth/internal/notification"
	"github.com/stardust/classifieds-auth/internal/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	emailTokensRepo := repository.NewEmailTokensRepository(db)
	otpsRepo := repository.NewPhoneOTPsRepository(db)
	resetTokensRepo := repository.NewResetTokensRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	// Initialize delivery channels if configured
	var emailSender auth.EmailSender
	if cfg.HasSMTP() {
		emailSender = notification.NewEmailService(notification.EmailConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			FrontendURL: cfg.FrontendURL,
		})
		logger.Info("email delivery enabled")
	}

	var smsSender auth.SMSSender
	if cfg.HasSNS() {
		sms, err := notification.NewSMSService(context.Background(), notification.SMSConfig{
			Region: cfg.AWSRegion,
		})
		if err != nil {
			logger.Error("failed to initialize sms delivery", "error", err)
			os.Exit(1)
		}
		smsSender = sms
		logger.Info("sms delivery enabled")
	}

	// Initialize services
	passwordPolicy := auth.DefaultPasswordPolicy()
	verificationConfig := auth.VerificationConfig{
		EmailTokenTTL:  cfg.EmailTokenTTL,
		OTPTTL:         cfg.OTPTTL,
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		ResetTokenTTL:  cfg.ResetTokenTTL,
	}

	accountService := auth.NewAccountService(usersRepo, passwordPolicy, verificationConfig)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
	}, blacklistRepo, usersRepo)
	verificationService := auth.NewVerificationService(
		verificationConfig,
		usersRepo,
		emailTokensRepo,
		otpsRepo,
		resetTokensRepo,
		emailSender,
		smsSender,
		passwordPolicy,
	)

	// Purge blacklist entries whose tokens have expired on their own.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := blacklistRepo.DeleteExpired(context.Background(), 0); err != nil {
				logger.Error("blacklist purge failed", "error", err)
			} else if n > 0 {
				logger.Info("purged expired blacklist entries", "count", n)
			}
		}
	}()

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		AccountService:      accountService,
		SessionService:      sessionService,
		VerificationService: verificationService,
		EmailSender:         emailSender,
		SMSSender:           smsSender,
		DB:                  db,
		RateLimitConfig:     cfg.RateLimit,
		SecurityHeaders:     cfg.SecurityHeaders,
		Validation:          cfg.Validation,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
