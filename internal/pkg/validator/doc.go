// Package validator validates request and domain structs through struct tags.
//
// Failures are reported as a field to message map keyed by snake_case field
// names so they can be rendered next to the JSON fields that caused them.
package validator
