package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/ayurclinic/internal/notification/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/messaging"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/shared/event"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, attrs map[string]string) context.Context {
	if cID := attrs[event.OTPRequestedAttributeCorrelationID]; cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// OTPRequestedNotification decodes an OTP event and hands it to the usecase.
// Undecodable bodies are acked and dropped.
func (h *MQHandler) OTPRequestedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Attributes())

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPRequestedNotification")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: otp requested notification", "msg_id", msg.ID(), "msg_body", body)

	var payload event.OTPRequestedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp requested notification", "msg_id", msg.ID(), "error", err)
		return nil
	}

	if err := h.uc.ConsumeOTPRequested(ctx, usecase.ConsumeOTPRequestedInput{
		EventID:   payload.EventID,
		Email:     payload.Email,
		Name:      payload.Name,
		Code:      payload.Code,
		Purpose:   payload.Purpose,
		ExpiresAt: payload.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp requested", "msg_id", msg.ID(), "event_id", payload.EventID, "error", err)
		return err
	}

	return nil
}
