package entity

import (
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

// CreateDeliveryLog records an outgoing message before it is handed to the provider.
type CreateDeliveryLog struct {
	ID         int64
	EventID    string
	Channel    Channel
	Recipient  string
	TriggerKey TriggerKey
	Status     DeliveryStatus
}

type UpdateDeliveryLog struct {
	ID               int64
	Status           DeliveryStatus
	ProviderResponse valueobject.JSONMap
	SentAt           *time.Time
}

type DeliveryLog struct {
	ID               int64
	EventID          string
	Channel          Channel
	Recipient        string
	TriggerKey       TriggerKey
	Status           DeliveryStatus
	ProviderResponse valueobject.JSONMap
	SentAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
