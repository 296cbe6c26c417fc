package event

import "time"

const (
	OTPRequestedDestination            string = "identity_otp_requested"
	OTPRequestedConsumerNotification   string = "identity_otp_requested_notification"
	OTPRequestedAttributeCorrelationID string = "cID"
)

// OTPRequestedMessage asks the notification module to deliver a one-time code.
//
// EventID is stable across broker redeliveries and is the idempotency key on
// the consumer side.
type OTPRequestedMessage struct {
	EventID   string    `json:"event_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}
