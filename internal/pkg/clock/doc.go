// Package clock abstracts the wall clock.
//
// Business code depends on Clocker so token expiry can be driven by a fixed
// clock in tests.
package clock
