package entity

import "errors"

var (
	ErrAlreadyRegistered         = errors.New("identity: email already registered")
	ErrUserNotFound              = errors.New("identity: user not found")
	ErrOTPAlreadyPending         = errors.New("identity: otp already pending")
	ErrOTPInvalid                = errors.New("identity: otp invalid")
	ErrOTPExpired                = errors.New("identity: otp expired")
	ErrOTPTooManyAttempts        = errors.New("identity: otp too many attempts")
	ErrInvalidRegistrationSecret = errors.New("identity: invalid registration secret")
	ErrRegistrationUnavailable   = errors.New("identity: registration secret not configured")
)
