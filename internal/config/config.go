package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RateLimitConfig holds per-scope rate limiting thresholds.
type RateLimitConfig struct {
	Enabled bool

	AuthRequestsPerWindow int
	AuthWindow            time.Duration

	ResetRequestsPerWindow int
	ResetWindow            time.Duration

	OTPRequestsPerWindow int
	OTPWindow            time.Duration

	RefreshRequestsPerWindow int
	RefreshWindow            time.Duration

	ProfileRequestsPerWindow int
	ProfileWindow            time.Duration
}

// SecurityHeadersConfig tunes the response headers applied to every reply.
// The API only ever serves JSON, so most headers are fixed in the middleware;
// only transport and referrer behavior vary by deployment.
type SecurityHeadersConfig struct {
	Enabled        bool
	HSTSMaxAge     int
	ReferrerPolicy string
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Verification
	EmailTokenTTL  time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
	ResetTokenTTL  time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// SNS
	AWSRegion string

	// FrontendURL is the base URL used in verification and reset links.
	FrontendURL string

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "classifieds_auth"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "classifieds-auth"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		// Verification defaults
		EmailTokenTTL:  getEnvDuration("EMAIL_TOKEN_TTL", 24*time.Hour),
		OTPTTL:         getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 3),
		ResetTokenTTL:  getEnvDuration("RESET_TOKEN_TTL", time.Hour),

		// SMTP (optional; email delivery disabled when host is empty)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@stardust-classifieds.com"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Stardust Classifieds"),

		// SNS (optional; SMS delivery disabled when region is empty)
		AWSRegion: getEnv("AWS_REGION", ""),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),

			AuthRequestsPerWindow: getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 5),
			AuthWindow:            getEnvDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),

			ResetRequestsPerWindow: getEnvInt("RATE_LIMIT_RESET_REQUESTS", 3),
			ResetWindow:            getEnvDuration("RATE_LIMIT_RESET_WINDOW", time.Hour),

			OTPRequestsPerWindow: getEnvInt("RATE_LIMIT_OTP_REQUESTS", 10),
			OTPWindow:            getEnvDuration("RATE_LIMIT_OTP_WINDOW", time.Hour),

			RefreshRequestsPerWindow: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindow:            getEnvDuration("RATE_LIMIT_REFRESH_WINDOW", time.Minute),

			ProfileRequestsPerWindow: getEnvInt("RATE_LIMIT_PROFILE_REQUESTS", 60),
			ProfileWindow:            getEnvDuration("RATE_LIMIT_PROFILE_WINDOW", time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:        getEnvBool("SECURITY_HEADERS_ENABLED", true),
			HSTSMaxAge:     getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			ReferrerPolicy: getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// HasSMTP returns true if the SMTP mailer is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// HasSNS returns true if the SNS SMS sender is configured.
func (c *Config) HasSNS() bool {
	return c.AWSRegion != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
