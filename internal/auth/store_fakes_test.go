package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stardust/classifieds-auth/internal/domain"
)

// memUserStore is an in-memory UserStore mirroring the Postgres repository's
// semantics, including the is_verified recompute on flag writes.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User

	emailTokens *memEmailTokenStore
	otps        *memOTPStore
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:       make(map[uuid.UUID]*domain.User),
		emailTokens: &memEmailTokenStore{},
		otps:        &memOTPStore{},
	}
}

func (s *memUserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *memUserStore) CreateWithTokens(ctx context.Context, user *domain.User, emailToken *domain.EmailVerificationToken, otp *domain.PhoneOTP) error {
	if err := s.Create(ctx, user); err != nil {
		return err
	}
	if emailToken != nil {
		if err := s.emailTokens.Replace(ctx, emailToken); err != nil {
			return err
		}
	}
	if otp != nil {
		if err := s.otps.Replace(ctx, otp); err != nil {
			return err
		}
	}
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email != nil && *user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.PhoneNumber != nil && *user.PhoneNumber == phone {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUserStore) FindByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*domain.User
	for _, user := range s.users {
		if (user.Email != nil && *user.Email == identifier) ||
			(user.PhoneNumber != nil && *user.PhoneNumber == identifier) {
			u := *user
			matches = append(matches, &u)
		}
	}
	return matches, nil
}

func (s *memUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *memUserStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	_, err := s.GetByPhone(ctx, phone)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *memUserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	u := *user
	u.IsVerified = u.FullyVerified()
	s.users[user.ID] = &u
	return nil
}

func (s *memUserStore) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.mutate(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (s *memUserStore) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	return s.mutate(id, func(u *domain.User) {
		u.EmailVerified = true
		u.IsVerified = u.FullyVerified()
	})
}

func (s *memUserStore) SetPhoneVerified(ctx context.Context, id uuid.UUID) error {
	return s.mutate(id, func(u *domain.User) {
		u.PhoneVerified = true
		u.IsVerified = u.FullyVerified()
	})
}

func (s *memUserStore) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.mutate(id, func(u *domain.User) { u.LastLogin = &at })
}

func (s *memUserStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.mutate(id, func(u *domain.User) { u.IsActive = false })
}

func (s *memUserStore) mutate(id uuid.UUID, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(user)
	return nil
}

// memEmailTokenStore mirrors the email token repository: Replace supersedes
// unused tokens for the user; Consume claims at most once.
type memEmailTokenStore struct {
	mu     sync.Mutex
	tokens []*domain.EmailVerificationToken
}

func (s *memEmailTokenStore) Replace(ctx context.Context, token *domain.EmailVerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.UserID == token.UserID && !t.IsUsed {
			t.IsUsed = true
		}
	}
	t := *token
	s.tokens = append(s.tokens, &t)
	return nil
}

func (s *memEmailTokenStore) Consume(ctx context.Context, tokenHash string) (*domain.EmailVerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash != tokenHash || t.IsUsed {
			continue
		}
		if t.IsExpired() {
			return nil, domain.ErrVerificationTokenExpired
		}
		t.IsUsed = true
		claimed := *t
		return &claimed, nil
	}
	return nil, domain.ErrVerificationTokenNotFound
}

// memOTPStore mirrors the phone OTP repository.
type memOTPStore struct {
	mu   sync.Mutex
	otps []*domain.PhoneOTP
}

func (s *memOTPStore) Replace(ctx context.Context, otp *domain.PhoneOTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.otps {
		if o.UserID == otp.UserID && !o.IsUsed {
			o.IsUsed = true
		}
	}
	o := *otp
	s.otps = append(s.otps, &o)
	return nil
}

func (s *memOTPStore) FindActive(ctx context.Context, phone string) (*domain.PhoneOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *domain.PhoneOTP
	for _, o := range s.otps {
		if o.PhoneNumber != phone || o.IsUsed {
			continue
		}
		if newest == nil || o.CreatedAt.After(newest.CreatedAt) {
			newest = o
		}
	}
	if newest == nil {
		return nil, domain.ErrOTPNotFound
	}
	found := *newest
	return &found, nil
}

func (s *memOTPStore) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.otps {
		if o.ID == id {
			o.Attempts++
			return nil
		}
	}
	return domain.ErrOTPNotFound
}

func (s *memOTPStore) Consume(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.otps {
		if o.ID == id {
			if !o.IsValid() {
				return domain.ErrOTPExpiredOrExhausted
			}
			o.IsUsed = true
			return nil
		}
	}
	return domain.ErrOTPExpiredOrExhausted
}

// memResetStore mirrors the password reset token repository.
type memResetStore struct {
	mu     sync.Mutex
	tokens []*domain.PasswordResetToken
}

func (s *memResetStore) Replace(ctx context.Context, token *domain.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.UserID == token.UserID && !t.IsUsed {
			t.IsUsed = true
		}
	}
	t := *token
	s.tokens = append(s.tokens, &t)
	return nil
}

func (s *memResetStore) Consume(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash != tokenHash || t.IsUsed {
			continue
		}
		if t.IsExpired() {
			return nil, domain.ErrVerificationTokenExpired
		}
		t.IsUsed = true
		claimed := *t
		return &claimed, nil
	}
	return nil, domain.ErrVerificationTokenNotFound
}

// memBlacklist is an in-memory BlacklistStore.
type memBlacklist struct {
	mu     sync.Mutex
	hashes map[string]bool
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{hashes: make(map[string]bool)}
}

func (s *memBlacklist) Add(ctx context.Context, token *domain.BlacklistedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[token.TokenHash] = true
	return nil
}

func (s *memBlacklist) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[tokenHash], nil
}

// recordingEmailSender captures outgoing email deliveries.
type recordingEmailSender struct {
	mu           sync.Mutex
	verifyTokens []string
	resetTokens  []string
	fail         bool
}

func (s *recordingEmailSender) SendVerificationEmail(to, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.verifyTokens = append(s.verifyTokens, token)
	return nil
}

func (s *recordingEmailSender) SendPasswordResetEmail(to, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.resetTokens = append(s.resetTokens, token)
	return nil
}

// recordingSMSSender captures outgoing SMS deliveries.
type recordingSMSSender struct {
	mu          sync.Mutex
	verifyCodes []string
	resetTokens []string
	fail        bool
}

func (s *recordingSMSSender) SendVerificationSMS(ctx context.Context, to, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sns unavailable")
	}
	s.verifyCodes = append(s.verifyCodes, code)
	return nil
}

func (s *recordingSMSSender) SendPasswordResetSMS(ctx context.Context, to, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sns unavailable")
	}
	s.resetTokens = append(s.resetTokens, token)
	return nil
}

func strptr(s string) *string { return &s }
