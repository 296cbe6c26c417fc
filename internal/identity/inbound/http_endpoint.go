package inbound

import (
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/identity/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for the OTP registration and password reset flows.
type HTTPEndpoint struct {
	uc uc
}

func toOTPSendResponse(out *usecase.IssueOTPOutput) OTPSendResponse {
	return OTPSendResponse{
		Email:     out.Email,
		Purpose:   out.Purpose.String(),
		ExpiresAt: out.ExpiresAt,
	}
}

// OTPSend issues a one-time code for any supported purpose.
// @Summary Send OTP
// @Description Generates a 6 digit code for the email and purpose and emails it. Only one live code exists per email and purpose.
// @Tags Identity, OTP
// @Accept json
// @Produce json
// @Param request body OTPSendRequest true "OTP payload"
// @Success 202 {object} router.Response{data=OTPSendResponse} "OTP sent"
// @Failure 400 {object} router.Response "Invalid request body"
// @Failure 404 {object} router.Response "User not found"
// @Failure 409 {object} router.Response "Email already registered"
// @Failure 422 {object} router.Response "Validation error"
// @Failure 429 {object} router.Response "OTP already sent"
// @Failure 500 {object} router.Response "Internal server error"
// @Router /api/v1/identity/otp/send [post]
func (h *HTTPEndpoint) OTPSend(r *router.Request) (any, error) {
	var req OTPSendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueOTP(r.Context(), usecase.IssueOTPInput{
		Email:   req.Email,
		Purpose: entity.ParseOTPPurpose(req.Purpose),
		Name:    req.Name,
	})
	if err != nil {
		return nil, err
	}

	return toOTPSendResponse(resp), nil
}

// Register starts a registration by emailing a code.
// @Summary Register user
// @Description Sends a registration code to an email that has no account yet.
// @Tags Identity, Registration
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 202 {object} router.Response{data=OTPSendResponse} "OTP sent"
// @Failure 400 {object} router.Response "Invalid request body"
// @Failure 409 {object} router.Response "Email already registered"
// @Failure 422 {object} router.Response "Validation error"
// @Failure 429 {object} router.Response "OTP already sent"
// @Failure 500 {object} router.Response "Internal server error"
// @Router /api/v1/identity/register [post]
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Register(r.Context(), usecase.RegisterInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		return nil, err
	}

	return toOTPSendResponse(resp), nil
}

// RegisterVerify completes a registration with the emailed code.
// @Summary Verify registration
// @Description Checks the code and the clinic registration secret, then creates the account.
// @Tags Identity, Registration
// @Accept json
// @Produce json
// @Param request body RegisterVerifyRequest true "Registration verification payload"
// @Success 201 {object} router.Response{data=RegisterVerifyResponse} "Account created"
// @Failure 400 {object} router.Response "Invalid request body"
// @Failure 401 {object} router.Response "Invalid or expired OTP"
// @Failure 403 {object} router.Response "Invalid registration secret"
// @Failure 409 {object} router.Response "Email already registered"
// @Failure 422 {object} router.Response "Validation error"
// @Failure 429 {object} router.Response "Too many attempts"
// @Failure 500 {object} router.Response "Internal server error"
// @Failure 503 {object} router.Response "Registration unavailable"
// @Router /api/v1/identity/register/verify [post]
func (h *HTTPEndpoint) RegisterVerify(r *router.Request) (any, error) {
	var req RegisterVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	user, err := h.uc.RegisterVerify(r.Context(), usecase.RegisterVerifyInput{
		Email:    req.Email,
		OTP:      req.OTP,
		Name:     req.Name,
		Password: req.Password,
		Secret:   req.Secret,
	})
	if err != nil {
		return nil, err
	}

	return RegisterVerifyResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role.String(),
		EmailVerified: user.EmailVerified,
	}, nil
}

// PasswordForgot emails a password reset code.
// @Summary Request password reset
// @Description Sends a reset code to the email of an existing account.
// @Tags Identity, Password
// @Accept json
// @Produce json
// @Param request body PasswordForgotRequest true "Password forgot payload"
// @Success 202 {object} router.Response{data=OTPSendResponse} "OTP sent"
// @Failure 400 {object} router.Response "Invalid request body"
// @Failure 404 {object} router.Response "User not found"
// @Failure 422 {object} router.Response "Validation error"
// @Failure 429 {object} router.Response "OTP already sent"
// @Failure 500 {object} router.Response "Internal server error"
// @Router /api/v1/identity/password/forgot [post]
func (h *HTTPEndpoint) PasswordForgot(r *router.Request) (any, error) {
	var req PasswordForgotRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.PasswordForgot(r.Context(), usecase.PasswordForgotInput{Email: req.Email})
	if err != nil {
		return nil, err
	}

	return toOTPSendResponse(resp), nil
}

// PasswordReset sets a new password with the emailed code.
// @Summary Reset password
// @Description Checks the code and replaces the account password.
// @Tags Identity, Password
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Password reset payload"
// @Success 200 {object} router.Response "Password reset"
// @Failure 400 {object} router.Response "Invalid request body"
// @Failure 401 {object} router.Response "Invalid or expired OTP"
// @Failure 404 {object} router.Response "User not found"
// @Failure 422 {object} router.Response "Validation error"
// @Failure 429 {object} router.Response "Too many attempts"
// @Failure 500 {object} router.Response "Internal server error"
// @Router /api/v1/identity/password/reset [post]
func (h *HTTPEndpoint) PasswordReset(r *router.Request) (any, error) {
	var req PasswordResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordReset(r.Context(), usecase.PasswordResetInput{
		Email:       req.Email,
		OTP:         req.OTP,
		NewPassword: req.NewPassword,
	}); err != nil {
		return nil, err
	}

	return PasswordResetResponse{}, nil
}
