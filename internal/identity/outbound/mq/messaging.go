package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/ayurclinic/internal/identity/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/messaging"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Publisher
	uuid   uid.StringID
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, uuid uid.StringID, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, uuid: uuid, ins: ins}
}

func (m *Messaging) PublishOTPRequested(ctx context.Context, msg usecase.OTPRequestedEvent) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, "PublishOTPRequested")
	defer span.End()

	span.SetAttributes(attribute.String("otp.purpose", msg.Purpose.String()))

	body, err := json.Marshal(event.OTPRequestedMessage{
		EventID:   m.uuid.Generate(),
		Email:     msg.Email,
		Name:      msg.Name,
		Code:      msg.Code,
		Purpose:   msg.Purpose.String(),
		ExpiresAt: msg.ExpiresAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, event.OTPRequestedDestination, messaging.OutgoingMessage{
		Body:       body,
		Key:        msg.Email,
		Attributes: map[string]string{event.OTPRequestedAttributeCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
