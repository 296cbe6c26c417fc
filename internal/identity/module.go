package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/identity/inbound"
	"github.com/shandysiswandi/ayurclinic/internal/identity/outbound/cache"
	"github.com/shandysiswandi/ayurclinic/internal/identity/outbound/db"
	"github.com/shandysiswandi/ayurclinic/internal/identity/outbound/dynamo"
	"github.com/shandysiswandi/ayurclinic/internal/identity/outbound/mq"
	"github.com/shandysiswandi/ayurclinic/internal/identity/usecase"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/clock"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/hash"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/messaging"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/otp"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/router"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/uid"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreDynamoDB = "dynamodb"
)

var (
	ErrUnknownStore      = errors.New("identity: unknown otp store")
	ErrStoreNotConnected = errors.New("identity: otp store connection is not configured")
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	CacheConn   redis.UniversalClient      // required when the otp store is redis
	DynamoConn  *dynamodb.Client           // required when the otp store is dynamodb
	Router      *router.Router             `validate:"required"`
	RateLimiter *router.RateLimiter        `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Password    hash.Hash                  `validate:"required"`
	Digest      hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	OTP         otp.Generator              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

type otpStore interface {
	CreateOTP(ctx context.Context, token entity.OTPToken, now time.Time) error
	GetOTP(ctx context.Context, email string, purpose entity.OTPPurpose, codeDigest string) (*entity.OTPToken, error)
	IncrementOTPAttempts(ctx context.Context, token *entity.OTPToken) (int, error)
	DeleteOTP(ctx context.Context, token *entity.OTPToken) error
	SweepExpiredOTP(ctx context.Context, now time.Time) (int64, error)
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbIdentity := db.NewDB(dep.DBConn, dep.Instrument)
	if dep.Config.GetBool("database.auto_migrate") {
		if err := dbIdentity.Migrate(dep.Ctx); err != nil {
			return fmt.Errorf("identity: migrate: %w", err)
		}
	}

	store, err := newOTPStore(dep, dbIdentity)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoUser:           dbIdentity,
		RepoOTP:            store,
		RepoMessaging:      mq.NewMessaging(dep.Messaging, dep.UUID, dep.Instrument),
		Validator:          dep.Validator,
		Password:           dep.Password,
		Digest:             dep.Digest,
		OTP:                dep.OTP,
		UID:                dep.UID,
		Clock:              dep.Clock,
		Instrument:         dep.Instrument,
		TTL:                dep.Config.GetMinute("modules.identity.otp.ttl_minutes"),
		MaxAttempts:        dep.Config.GetInt("modules.identity.otp.max_attempts"),
		RegistrationSecret: strings.TrimSpace(dep.Config.GetString("modules.identity.registration.shared_secret")),
		DefaultRole:        entity.ParseRole(dep.Config.GetString("modules.identity.registration.default_role")),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.RateLimiter.Middleware())

	return nil
}

func newOTPStore(dep Dependency, dbIdentity *db.DB) (otpStore, error) {
	retention := dep.Config.GetMinute("modules.identity.otp.retention_minutes")

	switch driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("modules.identity.otp.store"))); driver {
	case "", StorePostgres:
		return dbIdentity, nil
	case StoreRedis:
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotConnected, driver)
		}
		return cache.NewCache(dep.CacheConn, retention, dep.Instrument), nil
	case StoreDynamoDB:
		if dep.DynamoConn == nil {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotConnected, driver)
		}
		store := dynamo.NewDynamo(dep.DynamoConn, dep.Config.GetString("dynamodb.tables.otp_tokens"), retention, dep.Instrument)
		if dep.Config.GetBool("dynamodb.auto_create_table") {
			if err := store.EnsureTable(dep.Ctx); err != nil {
				return nil, fmt.Errorf("identity: ensure dynamodb table: %w", err)
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, driver)
	}
}
