// Package uid generates identifiers for persisted records and messages.
package uid

// NumberID generates sortable numeric identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates opaque string identifiers.
type StringID interface {
	Generate() string
}
