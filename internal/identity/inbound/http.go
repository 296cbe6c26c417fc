package inbound

import (
	"context"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/identity/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/router"
)

type uc interface {
	IssueOTP(ctx context.Context, in usecase.IssueOTPInput) (*usecase.IssueOTPOutput, error)

	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.IssueOTPOutput, error)
	RegisterVerify(ctx context.Context, in usecase.RegisterVerifyInput) (*entity.UserSummary, error)

	PasswordForgot(ctx context.Context, in usecase.PasswordForgotInput) (*usecase.IssueOTPOutput, error)
	PasswordReset(ctx context.Context, in usecase.PasswordResetInput) error
}

// RegisterHTTPEndpoint mounts the OTP endpoints. limit guards every route and
// may be nil.
func RegisterHTTPEndpoint(r *router.Router, uc uc, limit router.Middleware) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/identity/otp/send", end.OTPSend, limit)
	//
	r.POST("/api/v1/identity/register", end.Register, limit)
	r.POST("/api/v1/identity/register/verify", end.RegisterVerify, limit)
	//
	r.POST("/api/v1/identity/password/forgot", end.PasswordForgot, limit)
	r.POST("/api/v1/identity/password/reset", end.PasswordReset, limit)
}
