package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// Default token lifetimes
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// BlacklistStore records revoked refresh tokens. Entries are append-only.
type BlacklistStore interface {
	Add(ctx context.Context, token *domain.BlacklistedToken) error
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)
}

// SessionConfig holds token issuance configuration.
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	JWTSecret       []byte
	Issuer          string
}

// SessionService issues and refreshes JWT token pairs. Refresh tokens are
// signed JWTs checked against the blacklist on every use; logout blacklists
// the presented refresh token with its original expiry.
type SessionService struct {
	config    SessionConfig
	blacklist BlacklistStore
	users     UserStore
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, blacklist BlacklistStore, users UserStore) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &SessionService{
		config:    config,
		blacklist: blacklist,
		users:     users,
	}
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	Verified  bool   `json:"verified"`
}

// RefreshTokenClaims represents the claims in a refresh token.
type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// Issue mints an access/refresh token pair for the user.
func (s *SessionService) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.config.AccessTokenTTL)

	access, err := s.signAccessToken(user, now, accessExpiry)
	if err != nil {
		return nil, err
	}

	refreshClaims := RefreshTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenTTL)),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		TokenType: "refresh",
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    accessExpiry,
	}, nil
}

// Refresh validates a refresh token and mints a new access token. A revoked
// or malformed token never yields a new access token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, int, error) {
	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return "", 0, err
	}

	blacklisted, err := s.blacklist.IsBlacklisted(ctx, HashToken(refreshToken))
	if err != nil {
		return "", 0, err
	}
	if blacklisted {
		return "", 0, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", 0, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", 0, domain.ErrInvalidToken
		}
		return "", 0, err
	}
	if !user.IsActive {
		return "", 0, domain.ErrInvalidToken
	}

	now := time.Now()
	access, err := s.signAccessToken(user, now, now.Add(s.config.AccessTokenTTL))
	if err != nil {
		return "", 0, err
	}
	return access, int(s.config.AccessTokenTTL.Seconds()), nil
}

// Revoke validates a refresh token and records it in the blacklist with its
// original expiry so later Refresh calls presenting it are rejected.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.ErrInvalidToken
	}

	return s.blacklist.Add(ctx, &domain.BlacklistedToken{
		TokenHash:     HashToken(refreshToken),
		UserID:        userID,
		BlacklistedAt: time.Now(),
		ExpiresAt:     claims.ExpiresAt.Time,
	})
}

// ValidateAccessToken validates an access token and returns the claims.
// Refresh tokens share the signing key but carry a different token_type
// and are rejected here.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid || claims.TokenType != "access" {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

func (s *SessionService) signAccessToken(user *domain.User, now, expiry time.Time) (string, error) {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		TokenType: "access",
		Role:      string(user.Role),
		Email:     email,
		Verified:  user.IsVerified,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
}

func (s *SessionService) parseRefreshToken(raw string) (*RefreshTokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &RefreshTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*RefreshTokenClaims)
	if !ok || !token.Valid || claims.TokenType != "refresh" || claims.ExpiresAt == nil {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
