package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 200 * time.Millisecond
	maxDelay           = 5 * time.Second
)

type Mail struct {
	client      mail.Mail
	maxAttempts uint64
	baseDelay   time.Duration
	ins         instrument.Instrumentation
}

// New wraps client with retries. Delays follow a fibonacci sequence from
// baseDelay, each capped at 5s.
func New(client mail.Mail, maxAttempts int, baseDelay time.Duration, ins instrument.Instrumentation) *Mail {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Mail{client: client, maxAttempts: uint64(maxAttempts), baseDelay: baseDelay, ins: ins}
}

func permanent(err error) bool {
	return errors.Is(err, mail.ErrSMTPNoRecipients) ||
		errors.Is(err, mail.ErrSMTPNoSender) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Send returns the number of provider calls made alongside the final error.
func (m *Mail) Send(ctx context.Context, msg mail.Message) (int, error) {
	ctx, span := m.ins.Tracer("notification.outbound.email").Start(ctx, "Send")
	defer span.End()

	b := retry.NewFibonacci(m.baseDelay)
	b = retry.WithCappedDuration(maxDelay, b)
	b = retry.WithMaxRetries(m.maxAttempts-1, b)

	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		err := m.client.Send(ctx, msg)
		if err == nil || permanent(err) {
			return err
		}

		slog.WarnContext(ctx, "failed to send email, retrying", "attempt", attempts, "error", err)
		return retry.RetryableError(err)
	})

	span.SetAttributes(attribute.Int("email.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return attempts, err
	}

	return attempts, nil
}
