package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/identity/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsecase struct {
	mock.Mock
}

func (m *mockUsecase) IssueOTP(ctx context.Context, in usecase.IssueOTPInput) (*usecase.IssueOTPOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.IssueOTPOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) Register(ctx context.Context, in usecase.RegisterInput) (*usecase.IssueOTPOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.IssueOTPOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) RegisterVerify(ctx context.Context, in usecase.RegisterVerifyInput) (*entity.UserSummary, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*entity.UserSummary)
	return out, args.Error(1)
}

func (m *mockUsecase) PasswordForgot(ctx context.Context, in usecase.PasswordForgotInput) (*usecase.IssueOTPOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.IssueOTPOutput)
	return out, args.Error(1)
}

func (m *mockUsecase) PasswordReset(ctx context.Context, in usecase.PasswordResetInput) error {
	return m.Called(ctx, in).Error(0)
}

var expiresAt = time.Date(2026, 3, 2, 9, 10, 0, 0, time.UTC)

func setup(t *testing.T) (*router.Router, *mockUsecase) {
	t.Helper()

	uc := &mockUsecase{}
	t.Cleanup(func() { uc.AssertExpectations(t) })

	r := router.NewRouter(router.Config{Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, uc, nil)

	return r, uc
}

func call(t *testing.T, r http.Handler, path, body string) (int, router.Response) {
	t.Helper()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))

	var resp router.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHTTPEndpoint_OTPSend(t *testing.T) {
	r, uc := setup(t)

	uc.On("IssueOTP", mock.Anything, usecase.IssueOTPInput{
		Email:   "asha@x.com",
		Purpose: entity.OTPPurposeRegistration,
		Name:    "Asha Rao",
	}).Return(&usecase.IssueOTPOutput{
		Email:     "asha@x.com",
		Purpose:   entity.OTPPurposeRegistration,
		ExpiresAt: expiresAt,
	}, nil).Once()

	code, resp := call(t, r, "/api/v1/identity/otp/send",
		`{"email":"asha@x.com","purpose":"registration","name":"Asha Rao"}`)

	assert.Equal(t, http.StatusAccepted, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "OTP sent to your email", resp.Message)
	assert.Equal(t, map[string]any{
		"email":      "asha@x.com",
		"purpose":    "REGISTRATION",
		"expires_at": "2026-03-02T09:10:00Z",
	}, resp.Data)
}

func TestHTTPEndpoint_OTPSend_AlreadyPending(t *testing.T) {
	r, uc := setup(t)

	uc.On("IssueOTP", mock.Anything, mock.Anything).
		Return(nil, goerror.NewBusinessWrap(entity.ErrOTPAlreadyPending,
			"An OTP was already sent, please wait for it to expire before requesting a new one",
			goerror.CodeTooManyRequest)).Once()

	code, resp := call(t, r, "/api/v1/identity/otp/send", `{"email":"asha@x.com","purpose":"REGISTRATION"}`)

	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "already sent")
}

func TestHTTPEndpoint_Register(t *testing.T) {
	r, uc := setup(t)

	uc.On("Register", mock.Anything, usecase.RegisterInput{Email: "asha@x.com", Name: "Asha Rao"}).
		Return(&usecase.IssueOTPOutput{
			Email:     "asha@x.com",
			Purpose:   entity.OTPPurposeRegistration,
			ExpiresAt: expiresAt,
		}, nil).Once()

	code, resp := call(t, r, "/api/v1/identity/register", `{"email":"asha@x.com","name":"Asha Rao"}`)

	assert.Equal(t, http.StatusAccepted, code)
	assert.True(t, resp.Success)
}

func TestHTTPEndpoint_RegisterVerify(t *testing.T) {
	r, uc := setup(t)

	uc.On("RegisterVerify", mock.Anything, usecase.RegisterVerifyInput{
		Email:    "asha@x.com",
		OTP:      "482913",
		Password: "s3cret-pass",
		Secret:   "clinic-psk",
	}).Return(&entity.UserSummary{
		ID:            7,
		Email:         "asha@x.com",
		Name:          "Asha Rao",
		Role:          entity.RolePractitioner,
		EmailVerified: true,
	}, nil).Once()

	code, resp := call(t, r, "/api/v1/identity/register/verify",
		`{"email":"asha@x.com","otp":"482913","password":"s3cret-pass","secret":"clinic-psk"}`)

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Registration completed", resp.Message)
	assert.Equal(t, map[string]any{
		"id":             float64(7),
		"email":          "asha@x.com",
		"name":           "Asha Rao",
		"role":           "PRACTITIONER",
		"email_verified": true,
	}, resp.Data)
}

func TestHTTPEndpoint_RegisterVerify_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{
			name: "invalid secret",
			err:  goerror.NewBusinessWrap(entity.ErrInvalidRegistrationSecret, "Invalid registration secret", goerror.CodeForbidden),
			code: http.StatusForbidden,
		},
		{
			name: "expired",
			err:  goerror.NewBusinessWrap(entity.ErrOTPExpired, "OTP has expired, please request a new one", goerror.CodeUnauthorized),
			code: http.StatusUnauthorized,
		},
		{
			name: "unavailable",
			err:  goerror.NewBusinessWrap(entity.ErrRegistrationUnavailable, "Registration is currently unavailable", goerror.CodeUnavailable),
			code: http.StatusServiceUnavailable,
		},
		{
			name: "validation",
			err:  goerror.NewInvalidInput(nil, "otp", "otp must be exactly 6 digits"),
			code: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setup(t)
			uc.On("RegisterVerify", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			code, resp := call(t, r, "/api/v1/identity/register/verify",
				`{"email":"asha@x.com","otp":"482913","password":"s3cret-pass","secret":"x"}`)

			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
		})
	}
}

func TestHTTPEndpoint_PasswordForgot(t *testing.T) {
	r, uc := setup(t)

	uc.On("PasswordForgot", mock.Anything, usecase.PasswordForgotInput{Email: "ravi@x.com"}).
		Return(&usecase.IssueOTPOutput{
			Email:     "ravi@x.com",
			Purpose:   entity.OTPPurposePasswordReset,
			ExpiresAt: expiresAt,
		}, nil).Once()

	code, resp := call(t, r, "/api/v1/identity/password/forgot", `{"email":"ravi@x.com"}`)

	assert.Equal(t, http.StatusAccepted, code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PASSWORD_RESET", data["purpose"])
}

func TestHTTPEndpoint_PasswordReset(t *testing.T) {
	r, uc := setup(t)

	uc.On("PasswordReset", mock.Anything, usecase.PasswordResetInput{
		Email:       "ravi@x.com",
		OTP:         "735104",
		NewPassword: "n3w-password",
	}).Return(nil).Once()

	code, resp := call(t, r, "/api/v1/identity/password/reset",
		`{"email":"ravi@x.com","otp":"735104","new_password":"n3w-password"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Password has been reset", resp.Message)
}

func TestHTTPEndpoint_InvalidBody(t *testing.T) {
	paths := []string{
		"/api/v1/identity/otp/send",
		"/api/v1/identity/register",
		"/api/v1/identity/register/verify",
		"/api/v1/identity/password/forgot",
		"/api/v1/identity/password/reset",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			r, _ := setup(t)

			code, resp := call(t, r, path, `{"email":"a@b.co","unknown":true}`)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "Invalid request body", resp.Message)
		})
	}
}

func TestHTTPEndpoint_RateLimited(t *testing.T) {
	uc := &mockUsecase{}
	uc.On("PasswordForgot", mock.Anything, mock.Anything).
		Return(&usecase.IssueOTPOutput{Email: "ravi@x.com", Purpose: entity.OTPPurposePasswordReset}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := router.NewRouter(router.Config{Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, uc, router.NewRateLimiter(ctx, 0.001, 1).Middleware())

	code, _ := call(t, r, "/api/v1/identity/password/forgot", `{"email":"ravi@x.com"}`)
	assert.Equal(t, http.StatusAccepted, code)

	code, resp := call(t, r, "/api/v1/identity/password/forgot", `{"email":"ravi@x.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, resp.Success)

	uc.AssertExpectations(t)
}
