package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
)

type VerifyOTPInput struct {
	Email   string            `validate:"required,email,max=254"`
	Purpose entity.OTPPurpose `validate:"required,otp_purpose"`
	Code    string            `validate:"required,otp_code"`
	// Name overrides the name captured at issuance (registration only).
	Name     string `validate:"omitempty,min=2,max=100,person_name"`
	Password string `validate:"required,password"`
	// Secret is the registration shared secret (registration only).
	Secret string
}

type VerifyOTPOutput struct {
	// User is set for REGISTRATION only.
	User *entity.UserSummary
}

// VerifyOTP checks a submitted code and completes the purpose-specific action.
//
// The lookup matches the code itself, so a wrong code and a missing token both
// answer InvalidOTP and leave attempts alone. Expired and locked tokens are
// deleted without counting an attempt. Otherwise the attempt is recorded
// before completion, so a rejected registration secret still uses up one try.
func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (_ *VerifyOTPOutput, err error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	defer func() { s.countOutcome(ctx, "verify", in.Purpose, err) }()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.Purpose == entity.OTPPurposeRegistration && s.registrationSecret == "" {
		slog.ErrorContext(ctx, "registration shared secret is not configured")
		return nil, errRegistrationUnavailable
	}

	codeDigest, err := s.digestCode(in.Code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err, "Failed to verify OTP, please try again")
	}

	token, err := s.repoOTP.GetOTP(ctx, in.Email, in.Purpose, codeDigest)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp not matched", "email", in.Email, "purpose", in.Purpose.String())
		return nil, errOTPInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp", "email", in.Email, "purpose", in.Purpose.String(), "error", err)
		return nil, goerror.NewServer(err, "Failed to verify OTP, please try again")
	}

	switch token.State(s.clock.Now(), s.maxAttempts) {
	case entity.TokenStateExpired:
		return nil, s.discard(ctx, token, errOTPExpired)
	case entity.TokenStateLocked:
		return nil, s.discard(ctx, token, errOTPTooManyAttempts)
	}

	attempts, err := s.repoOTP.IncrementOTPAttempts(ctx, token)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp consumed concurrently", "otp_id", token.ID)
		return nil, errOTPInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo increment otp attempts", "otp_id", token.ID, "error", err)
		return nil, goerror.NewServer(err, "Failed to verify OTP, please try again")
	}
	token.Attempts = attempts

	// Only concurrent verifications can push the counter past the limit.
	if attempts > s.maxAttempts {
		return nil, s.discard(ctx, token, errOTPTooManyAttempts)
	}

	switch in.Purpose {
	case entity.OTPPurposeRegistration:
		return s.completeRegistration(ctx, in, token)
	case entity.OTPPurposePasswordReset:
		return s.completePasswordReset(ctx, in, token)
	default:
		return nil, errOTPInvalid
	}
}

// discard deletes a token that can no longer be used and returns reason.
func (s *Usecase) discard(ctx context.Context, token *entity.OTPToken, reason error) error {
	slog.WarnContext(ctx, "otp rejected", "otp_id", token.ID, "attempts", token.Attempts, "reason", reason.Error())

	if err := s.repoOTP.DeleteOTP(ctx, token); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo delete otp", "otp_id", token.ID, "error", err)
		return goerror.NewServer(err, "Failed to verify OTP, please try again")
	}

	return reason
}

// consume deletes a token after its action completed. The action already took
// effect, so a delete failure is logged rather than returned.
func (s *Usecase) consume(ctx context.Context, token *entity.OTPToken) {
	if err := s.repoOTP.DeleteOTP(ctx, token); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo delete consumed otp", "otp_id", token.ID, "error", err)
	}
}

func (s *Usecase) completeRegistration(ctx context.Context, in VerifyOTPInput, token *entity.OTPToken) (*VerifyOTPOutput, error) {
	if subtle.ConstantTimeCompare([]byte(in.Secret), []byte(s.registrationSecret)) != 1 {
		slog.WarnContext(ctx, "registration secret mismatch", "email", in.Email, "attempts", token.Attempts)
		return nil, errInvalidRegistrationSecret
	}

	name := in.Name
	if name == "" {
		name = token.Name()
	}
	if name == "" {
		name, _, _ = strings.Cut(in.Email, "@")
	}

	passwordHash, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, goerror.NewServer(err, "Failed to complete registration, please try again")
	}

	now := s.clock.Now()
	user := entity.User{
		ID:            s.uid.Generate(),
		Email:         in.Email,
		Name:          name,
		PasswordHash:  string(passwordHash),
		Role:          s.defaultRole,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repoUser.CreateUser(ctx, user)
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "email registered before otp verification completed", "email", in.Email)
		s.consume(ctx, token)
		return nil, errAlreadyRegistered
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create user", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err, "Failed to complete registration, please try again")
	}

	s.consume(ctx, token)

	return &VerifyOTPOutput{User: user.Summary()}, nil
}

func (s *Usecase) completePasswordReset(ctx context.Context, in VerifyOTPInput, token *entity.OTPToken) (*VerifyOTPOutput, error) {
	passwordHash, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash new password", "error", err)
		return nil, goerror.NewServer(err, "Failed to reset password, please try again")
	}

	err = s.repoUser.UpdateUserPassword(ctx, in.Email, string(passwordHash))
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "password reset for removed user", "email", in.Email)
		s.consume(ctx, token)
		return nil, errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update user password", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err, "Failed to reset password, please try again")
	}

	s.consume(ctx, token)

	return &VerifyOTPOutput{}, nil
}

type RegisterVerifyInput struct {
	Email    string `validate:"required,email,max=254"`
	OTP      string `validate:"required,otp_code"`
	Name     string `validate:"omitempty,min=2,max=100,person_name"`
	Password string `validate:"required,password"`
	// Secret is checked after the attempt is recorded; empty is a mismatch.
	Secret string
}

// RegisterVerify completes a registration with the emailed code.
func (s *Usecase) RegisterVerify(ctx context.Context, in RegisterVerifyInput) (*entity.UserSummary, error) {
	in.Email = normalizeEmail(in.Email)
	in.OTP = strings.TrimSpace(in.OTP)
	in.Name = strings.TrimSpace(in.Name)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	out, err := s.VerifyOTP(ctx, VerifyOTPInput{
		Email:    in.Email,
		Purpose:  entity.OTPPurposeRegistration,
		Code:     in.OTP,
		Name:     in.Name,
		Password: in.Password,
		Secret:   in.Secret,
	})
	if err != nil {
		return nil, err
	}

	return out.User, nil
}

type PasswordResetInput struct {
	Email       string `validate:"required,email,max=254"`
	OTP         string `validate:"required,otp_code"`
	NewPassword string `validate:"required,password"`
}

// PasswordReset sets a new password with the emailed code.
func (s *Usecase) PasswordReset(ctx context.Context, in PasswordResetInput) error {
	in.Email = normalizeEmail(in.Email)
	in.OTP = strings.TrimSpace(in.OTP)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	_, err := s.VerifyOTP(ctx, VerifyOTPInput{
		Email:    in.Email,
		Purpose:  entity.OTPPurposePasswordReset,
		Code:     in.OTP,
		Password: in.NewPassword,
	})
	return err
}
