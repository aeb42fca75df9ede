package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// EmailTokensRepository handles email verification token persistence.
type EmailTokensRepository struct {
	db *sql.DB
}

// NewEmailTokensRepository creates a new email tokens repository.
func NewEmailTokensRepository(db *sql.DB) *EmailTokensRepository {
	return &EmailTokensRepository{db: db}
}

// Replace invalidates all unused tokens for the token's user and inserts the
// new one in a single transaction, keeping at most one active token per user.
func (r *EmailTokensRepository) Replace(ctx context.Context, token *domain.EmailVerificationToken) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE email_verification_tokens
			SET is_used = TRUE
			WHERE user_id = $1 AND is_used = FALSE
		`
		if _, err := tx.ExecContext(ctx, query, token.UserID); err != nil {
			return err
		}
		return insertEmailToken(ctx, tx, token)
	})
}

func insertEmailToken(ctx context.Context, q Querier, token *domain.EmailVerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (id, user_id, token_hash, email, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.Email,
		token.CreatedAt, token.ExpiresAt, token.IsUsed,
	)
	return err
}

// Consume atomically marks the unused, unexpired token matching the hash as
// used and returns it. The conditional UPDATE makes redemption at-most-once:
// a second redemption matches zero rows. An unused-but-expired token is
// reported without being touched; expiry already makes it inert.
func (r *EmailTokensRepository) Consume(ctx context.Context, tokenHash string) (*domain.EmailVerificationToken, error) {
	query := `
		UPDATE email_verification_tokens
		SET is_used = TRUE
		WHERE token_hash = $1 AND is_used = FALSE AND expires_at > NOW()
		RETURNING id, user_id, token_hash, email, created_at, expires_at, is_used
	`
	token := &domain.EmailVerificationToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Email,
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

// classifyMiss distinguishes an expired unused token from one that never
// existed or was already used.
func (r *EmailTokensRepository) classifyMiss(ctx context.Context, tokenHash string) error {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM email_verification_tokens
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
