// Package otp generates one-time passcodes delivered out of band.
package otp
