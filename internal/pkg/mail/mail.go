package mail

import (
	"context"
	"io"
)

// Message is an email payload.
type Message struct {
	// From overrides the configured sender when set.
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	// TextBody is sent alone, or as the plain alternative when HTMLBody is set.
	TextBody string
	HTMLBody string
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
