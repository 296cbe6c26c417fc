package inbound

import (
	"net/http"
	"time"
)

type OTPSendRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose" example:"REGISTRATION"`
	Name    string `json:"name,omitempty"`
}

type OTPSendResponse struct {
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (OTPSendResponse) Message() string {
	return "OTP sent to your email"
}

func (OTPSendResponse) StatusCode() int {
	return http.StatusAccepted
}

type RegisterRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type RegisterVerifyRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
	Secret   string `json:"secret"`
}

type RegisterVerifyResponse struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

func (RegisterVerifyResponse) Message() string {
	return "Registration completed"
}

func (RegisterVerifyResponse) StatusCode() int {
	return http.StatusCreated
}

type PasswordForgotRequest struct {
	Email string `json:"email"`
}

type PasswordResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type PasswordResetResponse struct{}

func (PasswordResetResponse) Message() string {
	return "Password has been reset"
}
