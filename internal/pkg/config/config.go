package config

import (
	"io"
	"time"
)

// Config reads typed values by dotted key (e.g. "modules.identity.otp.ttl_minutes").
//
// Missing keys and unconvertible values yield the type's zero value, so callers
// apply their own defaults.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt64(key string) int64
	GetFloat64(key string) float64

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads an integer number of minutes.
	GetMinute(key string) time.Duration

	// GetArray reads a YAML list or a comma separated string. Blank entries are dropped.
	GetArray(key string) []string

	// GetMap reads a value stored as "k1:v1,k2:v2".
	GetMap(key string) map[string]string
}
