package entity

import "strings"

// OTPPurpose scopes a token so a code issued for one flow cannot satisfy the other.
type OTPPurpose string

const (
	OTPPurposeUnknown       OTPPurpose = ""
	OTPPurposeRegistration  OTPPurpose = "REGISTRATION"
	OTPPurposePasswordReset OTPPurpose = "PASSWORD_RESET"
)

func (p OTPPurpose) String() string { return string(p) }

// Ensure maps any unrecognized value to OTPPurposeUnknown.
func (p OTPPurpose) Ensure() OTPPurpose {
	switch p {
	case OTPPurposeRegistration, OTPPurposePasswordReset:
		return p
	default:
		return OTPPurposeUnknown
	}
}

// ParseOTPPurpose accepts the purpose in any letter case.
func ParseOTPPurpose(raw string) OTPPurpose {
	return OTPPurpose(strings.ToUpper(strings.TrimSpace(raw))).Ensure()
}

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RolePractitioner Role = "PRACTITIONER"
	RoleStaff        Role = "STAFF"
)

func (r Role) String() string { return string(r) }

// ParseRole returns RoleStaff for anything it does not recognize.
func ParseRole(raw string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleAdmin, RolePractitioner, RoleStaff:
		return r
	default:
		return RoleStaff
	}
}

// TokenState is derived from a token on every access instead of being stored.
type TokenState int8

const (
	TokenStatePending TokenState = iota
	TokenStateExpired
	TokenStateLocked
	TokenStateConsumed
)

func (s TokenState) String() string {
	switch s {
	case TokenStatePending:
		return "Pending"
	case TokenStateExpired:
		return "Expired"
	case TokenStateLocked:
		return "Locked"
	case TokenStateConsumed:
		return "Consumed"
	default:
		return "Unknown"
	}
}
