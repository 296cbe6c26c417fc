package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

type IssueOTPInput struct {
	Email   string            `validate:"required,email,max=254"`
	Purpose entity.OTPPurpose `validate:"required,otp_purpose"`
	Name    string            `validate:"omitempty,min=2,max=100,person_name"`
}

type IssueOTPOutput struct {
	Email     string
	Purpose   entity.OTPPurpose
	ExpiresAt time.Time
}

// IssueOTP creates a code for (email, purpose) and hands it to delivery.
//
// A live token for the same pair rejects the request with AlreadyPending and
// leaves that token untouched. A failed delivery keeps the stored token, so
// the caller waits for it to expire before asking again.
func (s *Usecase) IssueOTP(ctx context.Context, in IssueOTPInput) (_ *IssueOTPOutput, err error) {
	ctx, span := s.startSpan(ctx, "IssueOTP")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	defer func() { s.countOutcome(ctx, "issue", in.Purpose, err) }()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	name, err := s.checkIssuePrecondition(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if n, err := s.repoOTP.SweepExpiredOTP(ctx, now); err != nil {
		slog.WarnContext(ctx, "failed to repo sweep expired otp", "error", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "expired otp swept", "count", n)
	}

	code, err := s.otp.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err, "Failed to send OTP, please try again")
	}

	codeDigest, err := s.digestCode(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err, "Failed to send OTP, please try again")
	}

	metadata := valueobject.JSONMap{}
	if name != "" {
		metadata = metadata.With(entity.MetadataName, name)
	}

	token := entity.OTPToken{
		ID:         s.uid.Generate(),
		Email:      in.Email,
		CodeDigest: codeDigest,
		Purpose:    in.Purpose,
		ExpiresAt:  now.Add(s.ttl),
		Attempts:   0,
		Metadata:   metadata,
		CreatedAt:  now,
	}

	err = s.repoOTP.CreateOTP(ctx, token, now)
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "otp already pending", "email", in.Email, "purpose", in.Purpose.String())
		return nil, errOTPAlreadyPending
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp", "email", in.Email, "purpose", in.Purpose.String(), "error", err)
		return nil, goerror.NewServer(err, "Failed to send OTP, please try again")
	}

	if err := s.repoMessaging.PublishOTPRequested(ctx, OTPRequestedEvent{
		Email:     token.Email,
		Name:      name,
		Code:      code,
		Purpose:   token.Purpose,
		ExpiresAt: token.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish otp requested", "email", token.Email, "purpose", token.Purpose.String(), "error", err)
		return nil, goerror.NewServer(err, "Failed to send OTP, please try again")
	}

	return &IssueOTPOutput{
		Email:     token.Email,
		Purpose:   token.Purpose,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// checkIssuePrecondition returns the name to greet the recipient with.
func (s *Usecase) checkIssuePrecondition(ctx context.Context, in IssueOTPInput) (string, error) {
	user, err := s.repoUser.GetUserByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", in.Email, "error", err)
		return "", goerror.NewServer(err, "Failed to send OTP, please try again")
	}

	switch in.Purpose {
	case entity.OTPPurposeRegistration:
		if user != nil {
			slog.WarnContext(ctx, "registration otp requested for registered email", "email", in.Email)
			return "", errAlreadyRegistered
		}
		return in.Name, nil

	case entity.OTPPurposePasswordReset:
		if user == nil {
			slog.WarnContext(ctx, "password reset otp requested for unknown email", "email", in.Email)
			return "", errUserNotFound
		}
		if in.Name != "" {
			return in.Name, nil
		}
		return user.Name, nil

	default:
		return "", goerror.NewInvalidInput(nil, "purpose", "purpose is not supported")
	}
}

type RegisterInput struct {
	Email string `validate:"required,email,max=254"`
	Name  string `validate:"required,min=2,max=100,person_name"`
}

// Register issues a REGISTRATION code.
func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*IssueOTPOutput, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	return s.IssueOTP(ctx, IssueOTPInput{
		Email:   in.Email,
		Purpose: entity.OTPPurposeRegistration,
		Name:    in.Name,
	})
}

type PasswordForgotInput struct {
	Email string
}

// PasswordForgot issues a PASSWORD_RESET code.
func (s *Usecase) PasswordForgot(ctx context.Context, in PasswordForgotInput) (*IssueOTPOutput, error) {
	return s.IssueOTP(ctx, IssueOTPInput{
		Email:   in.Email,
		Purpose: entity.OTPPurposePasswordReset,
	})
}
