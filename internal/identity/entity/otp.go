package entity

import (
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

// MetadataName is the metadata key carrying the display name given at issuance.
const MetadataName = "name"

// OTPToken is a single pending one-time code for an (email, purpose) pair.
//
// Stores never see the plaintext code, only CodeDigest.
type OTPToken struct {
	ID         int64
	Email      string
	CodeDigest string
	Purpose    OTPPurpose
	ExpiresAt  time.Time
	Attempts   int
	Metadata   valueobject.JSONMap
	CreatedAt  time.Time
}

// State reports the token state at now. Expiry wins over the attempt limit.
func (t *OTPToken) State(now time.Time, maxAttempts int) TokenState {
	switch {
	case t == nil:
		return TokenStateConsumed
	case now.After(t.ExpiresAt):
		return TokenStateExpired
	case t.Attempts >= maxAttempts:
		return TokenStateLocked
	default:
		return TokenStatePending
	}
}

// Name returns the display name stored at issuance, if any.
func (t *OTPToken) Name() string {
	return t.Metadata.GetString(MetadataName)
}
