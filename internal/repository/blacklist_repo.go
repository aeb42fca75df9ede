package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// BlacklistRepository handles revoked refresh token persistence. Rows are
// append-only; a periodic purge removes entries past their natural expiry.
type BlacklistRepository struct {
	db *sql.DB
}

// NewBlacklistRepository creates a new blacklist repository.
func NewBlacklistRepository(db *sql.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Add records a revoked refresh token. Revoking the same token twice is a
// no-op.
func (r *BlacklistRepository) Add(ctx context.Context, token *domain.BlacklistedToken) error {
	query := `
		INSERT INTO blacklisted_tokens (token_hash, user_id, blacklisted_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		token.TokenHash, token.UserID, token.BlacklistedAt, token.ExpiresAt,
	)
	return err
}

// IsBlacklisted reports whether the token hash has been revoked.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM blacklisted_tokens WHERE token_hash = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&exists)
	return exists, err
}

// DeleteExpired deletes blacklist entries whose tokens would have expired on
// their own before the cutoff.
func (r *BlacklistRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM blacklisted_tokens WHERE expires_at < $1`
	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
