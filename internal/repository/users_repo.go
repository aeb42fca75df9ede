package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

const userColumns = `id, email, phone_number, full_name, password_hash, role,
	       email_verified, phone_verified, is_verified, is_active, created_at, last_login`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	return r.createTx(ctx, r.db, user)
}

func (r *UsersRepository) createTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, phone_number, full_name, password_hash, role,
		                   email_verified, phone_verified, is_verified, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := q.ExecContext(ctx, query,
		user.ID, user.Email, user.PhoneNumber, user.FullName, user.PasswordHash, user.Role,
		user.EmailVerified, user.PhoneVerified, user.IsVerified, user.IsActive, user.CreatedAt,
	)
	return err
}

// CreateWithTokens creates the user and its initial verification token
// records in one transaction, so a user row is never observable without its
// token issuance having been attempted.
func (r *UsersRepository) CreateWithTokens(
	ctx context.Context,
	user *domain.User,
	emailToken *domain.EmailVerificationToken,
	otp *domain.PhoneOTP,
) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.createTx(ctx, tx, user); err != nil {
			return err
		}
		if emailToken != nil {
			if err := insertEmailToken(ctx, tx, emailToken); err != nil {
				return err
			}
		}
		if otp != nil {
			if err := insertPhoneOTP(ctx, tx, otp); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// GetByPhone retrieves a user by phone number.
func (r *UsersRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, phone))
}

// FindByIdentifier retrieves every user whose email or phone number equals
// the identifier. Unique constraints make more than one row pathological;
// callers treat that case as a failed lookup.
func (r *UsersRepository) FindByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR phone_number = $1`
	rows, err := r.db.QueryContext(ctx, query, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := scanUser(rows.Scan, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ExistsByEmail checks if a user exists by email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

// ExistsByPhone checks if a user exists by phone number.
func (r *UsersRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, phone).Scan(&exists)
	return exists, err
}

// Update writes the user's profile fields and verification flags. The three
// verification columns are written in one statement so is_verified can never
// drift from the flags it derives from.
func (r *UsersRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, phone_number = $3, full_name = $4,
		    email_verified = $5, phone_verified = $6,
		    is_verified = ($5 OR $6)
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PhoneNumber, user.FullName,
		user.EmailVerified, user.PhoneVerified,
	)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// SetPassword replaces the user's password hash.
func (r *UsersRepository) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// SetEmailVerified marks the email channel verified and recomputes
// is_verified in the same statement.
func (r *UsersRepository) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, is_verified = (TRUE OR phone_verified)
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// SetPhoneVerified marks the phone channel verified and recomputes
// is_verified in the same statement.
func (r *UsersRepository) SetPhoneVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET phone_verified = TRUE, is_verified = (email_verified OR TRUE)
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// SetLastLogin updates the last_login timestamp.
func (r *UsersRepository) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

// Deactivate soft-deactivates the user.
func (r *UsersRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET is_active = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

func (r *UsersRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := scanUser(row.Scan, user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(scan func(dest ...any) error, user *domain.User) error {
	return scan(
		&user.ID, &user.Email, &user.PhoneNumber, &user.FullName, &user.PasswordHash, &user.Role,
		&user.EmailVerified, &user.PhoneVerified, &user.IsVerified, &user.IsActive,
		&user.CreatedAt, &user.LastLogin,
	)
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
