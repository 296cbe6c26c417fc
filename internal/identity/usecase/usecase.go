package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/clock"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/hash"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/otp"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultOTPTTL         = 10 * time.Minute
	DefaultOTPMaxAttempts = 3
)

var (
	errAlreadyRegistered = goerror.NewBusinessWrap(entity.ErrAlreadyRegistered,
		"Email already registered", goerror.CodeConflict)
	errUserNotFound = goerror.NewBusinessWrap(entity.ErrUserNotFound,
		"User not found", goerror.CodeNotFound)
	errOTPAlreadyPending = goerror.NewBusinessWrap(entity.ErrOTPAlreadyPending,
		"An OTP was already sent, please wait for it to expire before requesting a new one", goerror.CodeTooManyRequest)
	errOTPInvalid = goerror.NewBusinessWrap(entity.ErrOTPInvalid,
		"Invalid OTP", goerror.CodeUnauthorized)
	errOTPExpired = goerror.NewBusinessWrap(entity.ErrOTPExpired,
		"OTP has expired, please request a new one", goerror.CodeUnauthorized)
	errOTPTooManyAttempts = goerror.NewBusinessWrap(entity.ErrOTPTooManyAttempts,
		"Too many attempts, please request a new OTP", goerror.CodeTooManyRequest)
	errInvalidRegistrationSecret = goerror.NewBusinessWrap(entity.ErrInvalidRegistrationSecret,
		"Invalid registration secret", goerror.CodeForbidden)
	errRegistrationUnavailable = goerror.NewBusinessWrap(entity.ErrRegistrationUnavailable,
		"Registration is currently unavailable", goerror.CodeUnavailable)
)

// OTPRequestedEvent carries a freshly issued code to the delivery side.
type OTPRequestedEvent struct {
	Email     string
	Name      string
	Code      string
	Purpose   entity.OTPPurpose
	ExpiresAt time.Time
}

type repoMessaging interface {
	PublishOTPRequested(ctx context.Context, msg OTPRequestedEvent) error
}

type repoUser interface {
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	CreateUser(ctx context.Context, user entity.User) error
	UpdateUserPassword(ctx context.Context, email, passwordHash string) error
}

// repoOTP persists tokens. Implementations enforce one live token per
// (email, purpose) themselves.
type repoOTP interface {
	// CreateOTP stores token unless a token for the same (email, purpose)
	// is still live at now, in which case it returns goerror.ErrConflict.
	// An expired token is replaced.
	CreateOTP(ctx context.Context, token entity.OTPToken, now time.Time) error
	GetOTP(ctx context.Context, email string, purpose entity.OTPPurpose, codeDigest string) (*entity.OTPToken, error)
	IncrementOTPAttempts(ctx context.Context, token *entity.OTPToken) (int, error)
	DeleteOTP(ctx context.Context, token *entity.OTPToken) error
	SweepExpiredOTP(ctx context.Context, now time.Time) (int64, error)
}

type Usecase struct {
	repoUser      repoUser
	repoOTP       repoOTP
	repoMessaging repoMessaging
	validator     validator.Validator
	password      hash.Hash
	digest        hash.Hash
	otp           otp.Generator
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation

	ttl                time.Duration
	maxAttempts        int
	registrationSecret string
	defaultRole        entity.Role

	outcomes metric.Int64Counter
}

type Dependency struct {
	RepoUser      repoUser
	RepoOTP       repoOTP
	RepoMessaging repoMessaging
	Validator     validator.Validator
	// Password hashes account passwords; Digest hashes OTP codes for storage.
	Password   hash.Hash
	Digest     hash.Hash
	OTP        otp.Generator
	UID        uid.NumberID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation

	TTL                time.Duration
	MaxAttempts        int
	RegistrationSecret string
	DefaultRole        entity.Role
}

func New(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	outcomes, err := ins.Meter("identity.usecase").Int64Counter("identity.otp.outcomes",
		metric.WithDescription("OTP issue and verify results by outcome"))
	if err != nil {
		slog.Error("failed to create otp outcome counter", "error", err)
	}

	uc := &Usecase{
		repoUser:           dep.RepoUser,
		repoOTP:            dep.RepoOTP,
		repoMessaging:      dep.RepoMessaging,
		validator:          dep.Validator,
		password:           dep.Password,
		digest:             dep.Digest,
		otp:                dep.OTP,
		uid:                dep.UID,
		clock:              dep.Clock,
		ins:                ins,
		ttl:                dep.TTL,
		maxAttempts:        dep.MaxAttempts,
		registrationSecret: dep.RegistrationSecret,
		defaultRole:        dep.DefaultRole,
		outcomes:           outcomes,
	}

	if uc.ttl <= 0 {
		uc.ttl = DefaultOTPTTL
	}
	if uc.maxAttempts <= 0 {
		uc.maxAttempts = DefaultOTPMaxAttempts
	}
	if uc.defaultRole == "" {
		uc.defaultRole = entity.RoleStaff
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}

func (s *Usecase) digestCode(code string) (string, error) {
	sum, err := s.digest.Hash(code)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

func (s *Usecase) countOutcome(ctx context.Context, operation string, purpose entity.OTPPurpose, err error) {
	if s.outcomes == nil {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("purpose", purpose.String()),
		attribute.String("outcome", outcomeOf(err)),
	))
}

func outcomeOf(err error) string {
	var gerr *goerror.Error

	switch {
	case err == nil:
		return "success"
	case errors.Is(err, entity.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, entity.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, entity.ErrOTPAlreadyPending):
		return "already_pending"
	case errors.Is(err, entity.ErrOTPInvalid):
		return "invalid"
	case errors.Is(err, entity.ErrOTPExpired):
		return "expired"
	case errors.Is(err, entity.ErrOTPTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, entity.ErrInvalidRegistrationSecret):
		return "invalid_secret"
	case errors.Is(err, entity.ErrRegistrationUnavailable):
		return "unavailable"
	case errors.As(err, &gerr) && gerr.Type() == goerror.TypeValidation:
		return "invalid_input"
	default:
		return "error"
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
