package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// PhoneOTPsRepository handles phone verification OTP persistence.
type PhoneOTPsRepository struct {
	db *sql.DB
}

// NewPhoneOTPsRepository creates a new phone OTPs repository.
func NewPhoneOTPsRepository(db *sql.DB) *PhoneOTPsRepository {
	return &PhoneOTPsRepository{db: db}
}

// Replace invalidates all unused OTPs for the OTP's user and inserts the new
// one in a single transaction.
func (r *PhoneOTPsRepository) Replace(ctx context.Context, otp *domain.PhoneOTP) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE phone_otps
			SET is_used = TRUE
			WHERE user_id = $1 AND is_used = FALSE
		`
		if _, err := tx.ExecContext(ctx, query, otp.UserID); err != nil {
			return err
		}
		return insertPhoneOTP(ctx, tx, otp)
	})
}

func insertPhoneOTP(ctx context.Context, q Querier, otp *domain.PhoneOTP) error {
	query := `
		INSERT INTO phone_otps (id, user_id, phone_number, otp_code, created_at, expires_at, is_used, attempts, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		otp.ID, otp.UserID, otp.PhoneNumber, otp.Code,
		otp.CreatedAt, otp.ExpiresAt, otp.IsUsed, otp.Attempts, otp.MaxAttempts,
	)
	return err
}

// FindActive returns the most recent unused OTP for the phone number.
// Issuance supersedes prior codes, so at most one row should match; ordering
// newest first keeps a stale row from shadowing the current one regardless.
func (r *PhoneOTPsRepository) FindActive(ctx context.Context, phone string) (*domain.PhoneOTP, error) {
	query := `
		SELECT id, user_id, phone_number, otp_code, created_at, expires_at, is_used, attempts, max_attempts
		FROM phone_otps
		WHERE phone_number = $1 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`
	otp := &domain.PhoneOTP{}
	err := r.db.QueryRowContext(ctx, query, phone).Scan(
		&otp.ID, &otp.UserID, &otp.PhoneNumber, &otp.Code,
		&otp.CreatedAt, &otp.ExpiresAt, &otp.IsUsed, &otp.Attempts, &otp.MaxAttempts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	return otp, nil
}

// IncrementAttempts charges one redemption attempt against the OTP record.
func (r *PhoneOTPsRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE phone_otps SET attempts = attempts + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Consume marks the OTP used only while it is still redeemable. Zero rows
// means the OTP was consumed, expired, or exhausted between lookup and
// claim.
func (r *PhoneOTPsRepository) Consume(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE phone_otps
		SET is_used = TRUE
		WHERE id = $1 AND is_used = FALSE AND expires_at > NOW() AND attempts < max_attempts
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOTPExpiredOrExhausted)
}
