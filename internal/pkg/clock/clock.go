package clock

import "time"

// Clocker returns the current time.
type Clocker interface {
	Now() time.Time
}

// TimeClocker reads the system clock.
type TimeClocker struct{}

// New returns a TimeClocker.
func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current UTC time truncated to microseconds, the precision
// postgres stores.
func (*TimeClocker) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
