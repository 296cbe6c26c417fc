package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/notification/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/clock"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/idempotency"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/mail"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	CreateDeliveryLog(ctx context.Context, dl entity.CreateDeliveryLog, now time.Time) (int64, error)
	UpdateDeliveryLogStatus(ctx context.Context, u entity.UpdateDeliveryLog, now time.Time) error
}

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) (int, error)
}

type Usecase struct {
	repoDB      repoDB
	repoMail    repoMail
	idempotency idempotency.Idempotency
	cfg         config.Config
	uid         uid.NumberID
	clock       clock.Clocker
	validator   validator.Validator
	ins         instrument.Instrumentation

	deliveries metric.Int64Counter
}

type Dependency struct {
	RepoDB      repoDB
	RepoMail    repoMail
	Idempotency idempotency.Idempotency
	Config      config.Config
	UID         uid.NumberID
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	deliveries, err := ins.Meter("notification.usecase").Int64Counter("notification.email.deliveries",
		metric.WithDescription("OTP emails by trigger and final delivery status"))
	if err != nil {
		slog.Error("failed to create email delivery counter", "error", err)
	}

	return &Usecase{
		repoDB:      dep.RepoDB,
		repoMail:    dep.RepoMail,
		idempotency: dep.Idempotency,
		cfg:         dep.Config,
		uid:         dep.UID,
		clock:       dep.Clock,
		validator:   dep.Validator,
		ins:         ins,
		deliveries:  deliveries,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

func (s *Usecase) countDelivery(ctx context.Context, tk entity.TriggerKey, status entity.DeliveryStatus) {
	if s.deliveries == nil {
		return
	}
	s.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger_key", tk.String()),
		attribute.String("status", status.String()),
	))
}

func (s *Usecase) baseEmailTemplateData() map[string]any {
	return map[string]any{
		"clinic_name":    s.cfg.GetString("modules.notification.email.clinic_name"),
		"clinic_address": s.cfg.GetString("modules.notification.email.clinic_address"),
		"support_email":  s.cfg.GetString("modules.notification.email.support_email"),
		"year":           s.clock.Now().Format("2006"),
	}
}
