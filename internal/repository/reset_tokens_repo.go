package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// ResetTokensRepository handles password reset token persistence.
type ResetTokensRepository struct {
	db *sql.DB
}

// NewResetTokensRepository creates a new reset tokens repository.
func NewResetTokensRepository(db *sql.DB) *ResetTokensRepository {
	return &ResetTokensRepository{db: db}
}

// Replace invalidates all unused reset tokens for the token's user and
// inserts the new one in a single transaction.
func (r *ResetTokensRepository) Replace(ctx context.Context, token *domain.PasswordResetToken) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE password_reset_tokens
			SET is_used = TRUE
			WHERE user_id = $1 AND is_used = FALSE
		`
		if _, err := tx.ExecContext(ctx, query, token.UserID); err != nil {
			return err
		}

		insert := `
			INSERT INTO password_reset_tokens (id, user_id, token_hash, delivery_method, created_at, expires_at, is_used)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.ExecContext(ctx, insert,
			token.ID, token.UserID, token.TokenHash, token.DeliveryMethod,
			token.CreatedAt, token.ExpiresAt, token.IsUsed,
		)
		return err
	})
}

// Consume atomically claims the unused, unexpired token matching the hash.
func (r *ResetTokensRepository) Consume(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens
		SET is_used = TRUE
		WHERE token_hash = $1 AND is_used = FALSE AND expires_at > NOW()
		RETURNING id, user_id, token_hash, delivery_method, created_at, expires_at, is_used
	`
	token := &domain.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.DeliveryMethod,
		&token.CreatedAt, &token.ExpiresAt, &token.IsUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.classifyMiss(ctx, tokenHash)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *ResetTokensRepository) classifyMiss(ctx context.Context, tokenHash string) error {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM password_reset_tokens
			WHERE token_hash = $1 AND is_used = FALSE AND expires_at <= NOW()
		)
	`
	var expired bool
	if err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&expired); err != nil {
		return err
	}
	if expired {
		return domain.ErrVerificationTokenExpired
	}
	return domain.ErrVerificationTokenNotFound
}
