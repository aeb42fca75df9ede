package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardust/classifieds-auth/internal/domain"
)

func newTestAccountService(t *testing.T) (*AccountService, *memUserStore) {
	t.Helper()
	users := newMemUserStore()
	svc := NewAccountService(users, DefaultPasswordPolicy(), VerificationConfig{})
	return svc, users
}

func registerUser(t *testing.T, svc *AccountService, email, phone string) *domain.User {
	t.Helper()
	params := RegisterParams{FullName: "Test User", Password: "Passw0rd!"}
	if email != "" {
		params.Email = strptr(email)
	}
	if phone != "" {
		params.PhoneNumber = strptr(phone)
	}
	user, _, err := svc.Register(context.Background(), params)
	require.NoError(t, err)
	return user
}

func TestRegister_EmailOnly(t *testing.T) {
	svc, users := newTestAccountService(t)

	user, tokens, err := svc.Register(context.Background(), RegisterParams{
		Email:    strptr("buyer@example.com"),
		FullName: "Jane Doe",
		Password: "Passw0rd!",
	})
	require.NoError(t, err)

	assert.Equal(t, "buyer@example.com", *user.Email)
	assert.Nil(t, user.PhoneNumber)
	assert.False(t, user.EmailVerified)
	assert.False(t, user.PhoneVerified)
	assert.False(t, user.IsVerified)
	assert.True(t, user.IsActive)
	assert.Equal(t, domain.RoleUser, user.Role)

	assert.Equal(t, []string{"email"}, tokens.Channels)
	assert.Len(t, tokens.EmailToken, EmailTokenLength)
	assert.Empty(t, tokens.OTPCode)

	// The token row is committed alongside the user, stored hashed.
	stored, err := users.emailTokens.Consume(context.Background(), HashToken(tokens.EmailToken))
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, "buyer@example.com", stored.Email)
}

func TestRegister_PhoneOnly(t *testing.T) {
	svc, users := newTestAccountService(t)

	user, tokens, err := svc.Register(context.Background(), RegisterParams{
		PhoneNumber: strptr("+15551234567"),
		FullName:    "Jane Doe",
		Password:    "Passw0rd!",
	})
	require.NoError(t, err)

	assert.Nil(t, user.Email)
	assert.Equal(t, "+15551234567", *user.PhoneNumber)
	assert.Equal(t, []string{"phone"}, tokens.Channels)
	assert.Len(t, tokens.OTPCode, OTPLength)
	assert.Empty(t, tokens.EmailToken)

	otp, err := users.otps.FindActive(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, tokens.OTPCode, otp.Code)
	assert.Equal(t, 3, otp.MaxAttempts)
}

func TestRegister_BothChannels(t *testing.T) {
	svc, _ := newTestAccountService(t)

	_, tokens, err := svc.Register(context.Background(), RegisterParams{
		Email:       strptr("both@example.com"),
		PhoneNumber: strptr("+15551234567"),
		FullName:    "Jane Doe",
		Password:    "Passw0rd!",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "phone"}, tokens.Channels)
}

func TestRegister_NormalizesEmail(t *testing.T) {
	svc, _ := newTestAccountService(t)

	user := registerUser(t, svc, "MiXeD@Example.COM", "")
	assert.Equal(t, "mixed@example.com", *user.Email)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAccountService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  RegisterParams
		wantErr error
	}{
		{
			"no identifier",
			RegisterParams{FullName: "Jane Doe", Password: "Passw0rd!"},
			domain.ErrMissingIdentifier,
		},
		{
			"bad email",
			RegisterParams{Email: strptr("not-an-email"), FullName: "Jane Doe", Password: "Passw0rd!"},
			domain.ErrInvalidEmail,
		},
		{
			"bad phone",
			RegisterParams{PhoneNumber: strptr("5551234567"), FullName: "Jane Doe", Password: "Passw0rd!"},
			domain.ErrInvalidPhone,
		},
		{
			"name too short",
			RegisterParams{Email: strptr("a@example.com"), FullName: "J", Password: "Passw0rd!"},
			domain.ErrInvalidFullName,
		},
		{
			"name with digits",
			RegisterParams{Email: strptr("a@example.com"), FullName: "Jane 2 Doe", Password: "Passw0rd!"},
			domain.ErrInvalidFullName,
		},
		{
			"weak password",
			RegisterParams{Email: strptr("a@example.com"), FullName: "Jane Doe", Password: "password"},
			domain.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_DuplicateIdentifier(t *testing.T) {
	svc, _ := newTestAccountService(t)
	registerUser(t, svc, "taken@example.com", "+15551234567")

	_, _, err := svc.Register(context.Background(), RegisterParams{
		Email:    strptr("taken@example.com"),
		FullName: "Other User",
		Password: "Passw0rd!",
	})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	_, _, err = svc.Register(context.Background(), RegisterParams{
		PhoneNumber: strptr("+15551234567"),
		FullName:    "Other User",
		Password:    "Passw0rd!",
	})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestAccountService(t)
	created := registerUser(t, svc, "login@example.com", "+15559876543")
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "login@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	// Email lookup is case-insensitive via normalization.
	_, err = svc.Authenticate(ctx, "LOGIN@example.com", "Passw0rd!")
	assert.NoError(t, err)

	user, err = svc.Authenticate(ctx, "+15559876543", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "login@example.com", "WrongPass1!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "unknown@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticate_AmbiguousIdentifier(t *testing.T) {
	svc, _ := newTestAccountService(t)
	registerUser(t, svc, "amb@example.com", "")

	// Not email-shaped and not E.164, but still matches by equality.
	_, err := svc.Authenticate(context.Background(), "no-such-identifier", "Passw0rd!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticate_Deactivated(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "gone@example.com", "")
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, user.ID, "Passw0rd!"))

	_, err := svc.Authenticate(ctx, "gone@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, domain.ErrAccountDeactivated)

	// Wrong password on a deactivated account must not reveal the state.
	_, err = svc.Authenticate(ctx, "gone@example.com", "WrongPass1!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticate_TimingParity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing measurement")
	}
	svc, _ := newTestAccountService(t)
	registerUser(t, svc, "timing@example.com", "")
	ctx := context.Background()

	const trials = 10
	measure := func(identifier string) time.Duration {
		var total time.Duration
		for i := 0; i < trials; i++ {
			start := time.Now()
			_, _ = svc.Authenticate(ctx, identifier, "WrongPass1!")
			total += time.Since(start)
		}
		return total / trials
	}

	known := measure("timing@example.com")
	unknown := measure("nobody@example.com")

	// Both paths run one argon2 verification, so their means should be
	// within an order of magnitude of each other.
	ratio := float64(known) / float64(unknown)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	assert.Less(t, ratio, 5.0, "known=%v unknown=%v", known, unknown)
}

func TestRecordLogin(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "last@example.com", "")
	ctx := context.Background()

	require.NoError(t, svc.RecordLogin(ctx, user.ID))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, time.Now(), *got.LastLogin, time.Minute)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "change@example.com", "")
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, "WrongPass1!", "NewPassw0rd!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, user.ID, "Passw0rd!", "weak")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "Passw0rd!", "NewPassw0rd!"))

	_, err = svc.Authenticate(ctx, "change@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "change@example.com", "NewPassw0rd!")
	assert.NoError(t, err)
}

func TestUpdateProfile_IdentifierChangeResetsVerification(t *testing.T) {
	svc, users := newTestAccountService(t)
	user := registerUser(t, svc, "old@example.com", "+15551230000")
	ctx := context.Background()

	require.NoError(t, users.SetEmailVerified(ctx, user.ID))
	require.NoError(t, users.SetPhoneVerified(ctx, user.ID))

	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		Email: strptr("new@example.com"),
	})
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", *updated.Email)
	assert.False(t, updated.EmailVerified)
	assert.True(t, updated.PhoneVerified)
	// Still verified overall through the untouched phone channel.
	assert.True(t, updated.IsVerified)
}

func TestUpdateProfile_ChangingOnlyChannelClearsVerified(t *testing.T) {
	svc, users := newTestAccountService(t)
	user := registerUser(t, svc, "solo@example.com", "")
	ctx := context.Background()

	require.NoError(t, users.SetEmailVerified(ctx, user.ID))

	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		Email: strptr("fresh@example.com"),
	})
	require.NoError(t, err)
	assert.False(t, updated.EmailVerified)
	assert.False(t, updated.IsVerified)
}

func TestUpdateProfile_CannotRemoveLastIdentifier(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "only@example.com", "")

	_, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileParams{
		Email: strptr(""),
	})
	assert.ErrorIs(t, err, domain.ErrMissingIdentifier)
}

func TestUpdateProfile_IdentifierConflict(t *testing.T) {
	svc, _ := newTestAccountService(t)
	registerUser(t, svc, "holder@example.com", "")
	user := registerUser(t, svc, "mover@example.com", "")

	_, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileParams{
		Email: strptr("holder@example.com"),
	})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUpdateProfile_FullName(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "name@example.com", "")
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		FullName: strptr("Mary-Jane O'Connor Jr."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Mary-Jane O'Connor Jr.", updated.FullName)

	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{
		FullName: strptr("Robert; DROP TABLE"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFullName)
}

func TestDeactivate_RequiresPassword(t *testing.T) {
	svc, _ := newTestAccountService(t)
	user := registerUser(t, svc, "deact@example.com", "")
	ctx := context.Background()

	err := svc.Deactivate(ctx, user.ID, "WrongPass1!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, svc.Deactivate(ctx, user.ID, "Passw0rd!"))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
