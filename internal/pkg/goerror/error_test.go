package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "server", err: NewServer(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "conflict", err: NewBusiness("dup", CodeConflict), want: http.StatusConflict},
		{name: "too many", err: NewBusiness("wait", CodeTooManyRequest), want: http.StatusTooManyRequests},
		{name: "unauthorized", err: NewBusiness("bad", CodeUnauthorized), want: http.StatusUnauthorized},
		{name: "forbidden", err: NewBusiness("no", CodeForbidden), want: http.StatusForbidden},
		{name: "unavailable", err: NewBusiness("off", CodeUnavailable), want: http.StatusServiceUnavailable},
		{name: "invalid input", err: NewInvalidInput(nil, "email", "required"), want: http.StatusUnprocessableEntity},
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			require.ErrorAs(t, tt.err, &gerr)
			assert.Equal(t, tt.want, gerr.StatusCode())
		})
	}
}

func TestNewServer_Message(t *testing.T) {
	cause := errors.New("db down")

	var gerr *Error
	require.ErrorAs(t, NewServer(cause), &gerr)
	assert.Equal(t, "Internal server error", gerr.Msg())
	assert.ErrorIs(t, gerr, cause)

	require.ErrorAs(t, NewServer(cause, "Failed to send OTP, please try again"), &gerr)
	assert.Equal(t, "Failed to send OTP, please try again", gerr.Msg())
	assert.Equal(t, TypeServer, gerr.Type())
}

func TestNewBusinessWrap(t *testing.T) {
	sentinel := errors.New("otp expired")
	err := NewBusinessWrap(sentinel, "OTP has expired", CodeUnauthorized)

	assert.ErrorIs(t, err, sentinel)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "OTP has expired", gerr.Msg())
	assert.Equal(t, TypeBusiness, gerr.Type())
	assert.Equal(t, "ERROR_CODE_UNAUTHORIZED", gerr.Code().String())
}

func TestNewInvalidInput_OddPairs(t *testing.T) {
	var gerr *Error
	require.ErrorAs(t, NewInvalidInput(nil, "email"), &gerr)
	assert.Equal(t, CodeInvalidFormat, gerr.Code())

	require.ErrorAs(t, NewInvalidInput(nil, "email", "required", "otp", "len"), &gerr)
	assert.Equal(t, map[string]string{"email": "required", "otp": "len"}, gerr.Fields())
}
