package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/ayurclinic/internal/identity"
	"github.com/shandysiswandi/ayurclinic/internal/notification"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.identity.enabled") {
		dep := identity.Dependency{
			Ctx:         a.ctx,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			UUID:        a.uuid,
			Password:    a.password,
			Digest:      a.hmac,
			Clock:       a.clock,
			OTP:         a.otp,
			Validator:   a.validator,
			Router:      a.router,
			RateLimiter: a.rateLimiter,
			DBConn:      a.dbConn,
			CacheConn:   a.cacheConn,
			DynamoConn:  a.dynamoConn,
			Messaging:   a.messaging,
		}

		if err := identity.New(dep); err != nil {
			slog.Error("failed to init module identity", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			Messaging:   a.messaging,
			Idempotency: a.idemp,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			UUID:        a.uuid,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
			Mail:        a.mail,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
