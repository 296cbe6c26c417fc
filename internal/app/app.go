package app

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/clock"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goroutine"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/hash"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/idempotency"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/mail"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/messaging"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/otp"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/router"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
	"go.uber.org/atomic"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	password  hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	otp       otp.Generator

	// resources
	dbConn     *pgxpool.Pool
	cacheConn  *redis.Client
	dynamoConn *dynamodb.Client
	idemp      idempotency.Idempotency
	mail       mail.Mail
	messaging  messaging.Messaging

	// server
	router      *router.Router
	rateLimiter *router.RateLimiter
	httpServer  *http.Server
	ready       *atomic.Bool

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
		ready:  atomic.NewBool(false),
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initDynamoDB()
	app.initMail()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	app.ready.Store(true)

	return app
}
