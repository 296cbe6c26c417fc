// Package mail sends email messages.
//
// Callers depend on the Mail interface and the provider-agnostic Message; SMTP
// is the only transport implemented here.
package mail
