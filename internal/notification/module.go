package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/ayurclinic/internal/notification/inbound"
	"github.com/shandysiswandi/ayurclinic/internal/notification/outbound/db"
	"github.com/shandysiswandi/ayurclinic/internal/notification/outbound/email"
	"github.com/shandysiswandi/ayurclinic/internal/notification/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/clock"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goroutine"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/idempotency"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/mail"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/messaging"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	Messaging   messaging.Consumer         `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbNotif := db.NewDB(dep.DBConn, dep.Instrument)
	if dep.Config.GetBool("database.auto_migrate") {
		if err := dbNotif.Migrate(dep.Ctx); err != nil {
			return fmt.Errorf("notification: migrate: %w", err)
		}
	}

	repoMail := email.New(dep.Mail,
		dep.Config.GetInt("modules.notification.email.max_attempts"),
		time.Duration(dep.Config.GetInt64("modules.notification.email.retry_base_delay_ms"))*time.Millisecond,
		dep.Instrument,
	)

	uc := usecase.NewNotification(usecase.Dependency{
		RepoDB:      dbNotif,
		RepoMail:    repoMail,
		Idempotency: dep.Idempotency,
		Config:      dep.Config,
		UID:         dep.UID,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	})

	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return nil
}
