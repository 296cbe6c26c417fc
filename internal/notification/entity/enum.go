package entity

import "strings"

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 2
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

type DeliveryStatus int16

const (
	DeliveryStatusUnknown DeliveryStatus = 0
	DeliveryStatusQueued  DeliveryStatus = 1
	DeliveryStatusSent    DeliveryStatus = 3
	DeliveryStatusFailed  DeliveryStatus = 4
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusQueued:
		return "queued"
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TriggerKey selects the email template for an OTP purpose.
type TriggerKey string

const (
	TriggerKeyUnknown       TriggerKey = ""
	TriggerKeyRegistration  TriggerKey = "otp_registration"
	TriggerKeyPasswordReset TriggerKey = "otp_password_reset"
)

// TriggerKeyFromPurpose maps the purpose carried by an OTP event.
func TriggerKeyFromPurpose(purpose string) TriggerKey {
	switch strings.ToUpper(strings.TrimSpace(purpose)) {
	case "REGISTRATION":
		return TriggerKeyRegistration
	case "PASSWORD_RESET":
		return TriggerKeyPasswordReset
	default:
		return TriggerKeyUnknown
	}
}

func (tk TriggerKey) String() string {
	return string(tk)
}
