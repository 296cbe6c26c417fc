package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/ayurclinic/internal/notification/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/idempotency"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/mail"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

const expiresAtLayout = "15:04 MST, 2 Jan 2006"

type ConsumeOTPRequestedInput struct {
	EventID   string `validate:"required"`
	Email     string `validate:"required,email"`
	Name      string
	Code      string `validate:"required,otp_code"`
	Purpose   string `validate:"required"`
	ExpiresAt time.Time
}

// ConsumeOTPRequested emails an issued code once per event. Malformed,
// unknown and already expired events are dropped. A failed send is returned
// so the broker redelivers it, and the redelivery is allowed to run again.
func (s *Usecase) ConsumeOTPRequested(ctx context.Context, in ConsumeOTPRequestedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPRequested")
	defer span.End()

	if err := s.validator.Validate(in); err != nil || in.ExpiresAt.IsZero() {
		slog.ErrorContext(ctx, "Validation failed", "event_id", in.EventID, "error", err)
		return nil
	}

	tk := entity.TriggerKeyFromPurpose(in.Purpose)
	if tk == entity.TriggerKeyUnknown {
		slog.WarnContext(ctx, "unsupported otp purpose", "event_id", in.EventID, "purpose", in.Purpose)
		return nil
	}

	if !s.clock.Now().Before(in.ExpiresAt) {
		slog.WarnContext(ctx, "otp expired before delivery", "event_id", in.EventID, "expires_at", in.ExpiresAt)
		return nil
	}

	err := s.idempotency.Exec(ctx, "notification:otp_requested:"+in.EventID,
		func(ctx context.Context) error { return s.deliverOTP(ctx, in, tk) },
		idempotency.WithRetryFailed(),
		idempotency.WithStateTTL(s.cfg.GetMinute("modules.notification.idempotency_ttl_minutes")),
	)
	if errors.Is(err, idempotency.ErrAlreadyCompleted) {
		slog.InfoContext(ctx, "otp email already delivered", "event_id", in.EventID)
		return nil
	}

	return err
}

func (s *Usecase) deliverOTP(ctx context.Context, in ConsumeOTPRequestedInput, tk entity.TriggerKey) error {
	logID, err := s.repoDB.CreateDeliveryLog(ctx, entity.CreateDeliveryLog{
		ID:         s.uid.Generate(),
		EventID:    in.EventID,
		Channel:    entity.ChannelEmail,
		Recipient:  in.Email,
		TriggerKey: tk,
		Status:     entity.DeliveryStatusQueued,
	}, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery log", "event_id", in.EventID, "error", err)
		return err
	}

	data := s.baseEmailTemplateData()
	data["name"] = lo.Ternary(in.Name != "", in.Name, "there")
	data["code"] = in.Code
	data["expires_at"] = in.ExpiresAt.Format(expiresAtLayout)

	subject, body, err := renderTemplate(tk, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render email body", "event_id", in.EventID, "trigger_key", tk.String(), "error", err)
		s.markDelivery(ctx, logID, tk, entity.DeliveryStatusFailed, valueobject.JSONMap{"error": err.Error()})
		return nil
	}

	attempts, mailErr := s.repoMail.Send(ctx, mail.Message{
		To:       []string{in.Email},
		Subject:  subject,
		HTMLBody: body,
	})
	if mailErr != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "event_id", in.EventID, "attempts", attempts, "error", mailErr)
		s.markDelivery(ctx, logID, tk, entity.DeliveryStatusFailed, valueobject.JSONMap{
			"attempts": attempts,
			"error":    mailErr.Error(),
		})
		return mailErr
	}

	s.markDelivery(ctx, logID, tk, entity.DeliveryStatusSent, valueobject.JSONMap{"attempts": attempts})
	return nil
}

func (s *Usecase) markDelivery(ctx context.Context, logID int64, tk entity.TriggerKey, status entity.DeliveryStatus, resp valueobject.JSONMap) {
	s.countDelivery(ctx, tk, status)

	now := s.clock.Now()
	up := entity.UpdateDeliveryLog{
		ID:               logID,
		Status:           status,
		ProviderResponse: resp,
	}
	if status == entity.DeliveryStatusSent {
		up.SentAt = &now
	}

	if err := s.repoDB.UpdateDeliveryLogStatus(ctx, up, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo update delivery log status", "log_id", logID, "status", status.String(), "error", err)
	}
}
