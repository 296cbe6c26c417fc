package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newEmail = "new@x.com"

func issueRegistration(t *testing.T, h *harness) string {
	t.Helper()

	_, err := h.uc.Register(context.Background(), RegisterInput{Email: newEmail, Name: "Asha Rao"})
	require.NoError(t, err)
	return h.lastCode(t)
}

func registerVerify(h *harness, code, secret string) (*entity.UserSummary, error) {
	return h.uc.RegisterVerify(context.Background(), RegisterVerifyInput{
		Email:    newEmail,
		OTP:      code,
		Password: "correct horse battery",
		Secret:   secret,
	})
}

func attempts(t *testing.T, h *harness) int {
	t.Helper()

	tok, ok := h.otps.get(newEmail, entity.OTPPurposeRegistration)
	require.True(t, ok, "token should still exist")
	return tok.Attempts
}

func TestVerifyOTP_RegistrationSucceedsOnce(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	user, err := registerVerify(h, code, testSecret)
	require.NoError(t, err)

	assert.Equal(t, newEmail, user.Email)
	assert.Equal(t, "Asha Rao", user.Name)
	assert.Equal(t, entity.RolePractitioner, user.Role)
	assert.True(t, user.EmailVerified)

	stored, ok := h.users.get(newEmail)
	require.True(t, ok)
	assert.True(t, h.password.Verify(stored.PasswordHash, "correct horse battery"))

	_, ok = h.otps.get(newEmail, entity.OTPPurposeRegistration)
	assert.False(t, ok, "token is single use")

	_, err = registerVerify(h, code, testSecret)
	assert.ErrorIs(t, err, entity.ErrOTPInvalid)
}

func TestVerifyOTP_NameOverride(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	user, err := h.uc.RegisterVerify(context.Background(), RegisterVerifyInput{
		Email:    newEmail,
		OTP:      code,
		Name:     "Asha R. Menon",
		Password: "correct horse battery",
		Secret:   testSecret,
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha R. Menon", user.Name)
}

func TestVerifyOTP_WrongSecretConsumesAttempts(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	for want := 1; want <= 3; want++ {
		_, err := registerVerify(h, code, "wrong-secret")
		require.ErrorIs(t, err, entity.ErrInvalidRegistrationSecret)

		var gerr *goerror.Error
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, goerror.CodeForbidden, gerr.Code())
		assert.Equal(t, want, attempts(t, h))
	}

	_, err := registerVerify(h, code, testSecret)
	require.ErrorIs(t, err, entity.ErrOTPTooManyAttempts)

	_, ok := h.otps.get(newEmail, entity.OTPPurposeRegistration)
	assert.False(t, ok, "locked token is deleted")

	_, err = registerVerify(h, code, testSecret)
	require.ErrorIs(t, err, entity.ErrOTPInvalid)

	_, ok = h.users.get(newEmail)
	assert.False(t, ok)
}

func TestVerifyOTP_EmptySecretConsumesAttempt(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	_, err := registerVerify(h, code, "")
	require.ErrorIs(t, err, entity.ErrInvalidRegistrationSecret)
	assert.Equal(t, 1, attempts(t, h))

	_, ok := h.users.get(newEmail)
	assert.False(t, ok)
}

func TestVerifyOTP_UnknownCodeLeavesAttempts(t *testing.T) {
	h := newHarness(t, nil)
	issueRegistration(t, h)

	_, err := registerVerify(h, "000000", testSecret)
	require.ErrorIs(t, err, entity.ErrOTPInvalid)

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Invalid OTP", gerr.Msg())
	assert.Equal(t, goerror.CodeUnauthorized, gerr.Code())

	assert.Zero(t, attempts(t, h))
}

func TestVerifyOTP_Expired(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	h.clock.Advance(10*time.Minute + time.Second)

	_, err := registerVerify(h, code, testSecret)
	require.ErrorIs(t, err, entity.ErrOTPExpired)

	_, ok := h.otps.get(newEmail, entity.OTPPurposeRegistration)
	assert.False(t, ok, "expired token is deleted")

	_, err = registerVerify(h, code, testSecret)
	assert.ErrorIs(t, err, entity.ErrOTPInvalid)
}

func TestVerifyOTP_ExpiryBoundaryIsInclusive(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	h.clock.Advance(10 * time.Minute)

	_, err := registerVerify(h, code, testSecret)
	require.NoError(t, err)
}

func TestVerifyOTP_ExpiredTakesPrecedenceOverLocked(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	for range 3 {
		_, err := registerVerify(h, code, "wrong-secret")
		require.ErrorIs(t, err, entity.ErrInvalidRegistrationSecret)
	}

	h.clock.Advance(time.Hour)
	_, err := registerVerify(h, code, testSecret)
	require.ErrorIs(t, err, entity.ErrOTPExpired)
}

func TestVerifyOTP_SecretNotConfigured(t *testing.T) {
	h := newHarness(t, nil, withSecret(""))
	code := issueRegistration(t, h)

	_, err := registerVerify(h, code, "anything")
	require.ErrorIs(t, err, entity.ErrRegistrationUnavailable)

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Registration is currently unavailable", gerr.Msg())
	assert.Equal(t, 503, gerr.StatusCode())

	assert.Zero(t, attempts(t, h), "misconfiguration never costs an attempt")
}

func TestVerifyOTP_PurposeScopesLookup(t *testing.T) {
	h := newHarness(t, nil, withCodes("555111"))
	h.addUser("vaidya@x.com", "Vaidya")
	ctx := context.Background()

	_, err := h.uc.IssueOTP(ctx, IssueOTPInput{Email: "vaidya@x.com", Purpose: entity.OTPPurposePasswordReset})
	require.NoError(t, err)

	_, err = h.uc.VerifyOTP(ctx, VerifyOTPInput{
		Email:    "vaidya@x.com",
		Purpose:  entity.OTPPurposeRegistration,
		Code:     "555111",
		Password: "correct horse battery",
		Secret:   testSecret,
	})
	require.ErrorIs(t, err, entity.ErrOTPInvalid)

	tok, ok := h.otps.get("vaidya@x.com", entity.OTPPurposePasswordReset)
	require.True(t, ok)
	assert.Zero(t, tok.Attempts)
}

func TestVerifyOTP_PasswordReset(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser("vaidya@x.com", "Vaidya")
	ctx := context.Background()

	_, err := h.uc.PasswordForgot(ctx, PasswordForgotInput{Email: "vaidya@x.com"})
	require.NoError(t, err)
	code := h.lastCode(t)

	err = h.uc.PasswordReset(ctx, PasswordResetInput{Email: "VAIDYA@x.com", OTP: code, NewPassword: "a brand new secret"})
	require.NoError(t, err)

	stored, _ := h.users.get("vaidya@x.com")
	assert.True(t, h.password.Verify(stored.PasswordHash, "a brand new secret"))

	_, ok := h.otps.get("vaidya@x.com", entity.OTPPurposePasswordReset)
	assert.False(t, ok)

	err = h.uc.PasswordReset(ctx, PasswordResetInput{Email: "vaidya@x.com", OTP: code, NewPassword: "another secret!"})
	assert.ErrorIs(t, err, entity.ErrOTPInvalid)
}

func TestVerifyOTP_RegistrationRaceWithExistingUser(t *testing.T) {
	h := newHarness(t, nil)
	code := issueRegistration(t, h)

	h.addUser(newEmail, "Someone")

	_, err := registerVerify(h, code, testSecret)
	require.ErrorIs(t, err, entity.ErrAlreadyRegistered)

	_, ok := h.otps.get(newEmail, entity.OTPPurposeRegistration)
	assert.False(t, ok)
}

func TestVerifyOTP_InvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{
			name: "short otp",
			call: func() error {
				_, err := h.uc.RegisterVerify(ctx, RegisterVerifyInput{Email: newEmail, OTP: "123", Password: "long enough", Secret: "s"})
				return err
			},
			field: "otp",
		},
		{
			name: "short password",
			call: func() error {
				return h.uc.PasswordReset(ctx, PasswordResetInput{Email: newEmail, OTP: "123456", NewPassword: "short"})
			},
			field: "new_password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()

			var gerr *goerror.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, goerror.TypeValidation, gerr.Type())
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "success", outcomeOf(nil))
	assert.Equal(t, "already_pending", outcomeOf(errOTPAlreadyPending))
	assert.Equal(t, "invalid_secret", outcomeOf(errInvalidRegistrationSecret))
	assert.Equal(t, "invalid_input", outcomeOf(goerror.NewInvalidFormat()))
	assert.Equal(t, "error", outcomeOf(goerror.NewServer(nil)))
}
