package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix = "identity:otp:"

	// DefaultRetention keeps an expired token around long enough to answer
	// Expired instead of Invalid.
	DefaultRetention = time.Hour
)

// A token is live while expires_at >= now. Times are unix microseconds.
var createScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'expires_at')
if cur and tonumber(cur) >= tonumber(ARGV[6]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1],
	'id', ARGV[1],
	'digest', ARGV[2],
	'expires_at', ARGV[3],
	'attempts', 0,
	'metadata', ARGV[4],
	'created_at', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[7])
return 1
`)

var incrementScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return 0
end
return redis.call('DEL', KEYS[1])
`)

// Cache stores OTP tokens as one redis hash per (email, purpose). Every write
// is a Lua script, so check and write happen atomically on the server.
type Cache struct {
	client    redis.UniversalClient
	retention time.Duration
	ins       instrument.Instrumentation
}

func NewCache(client redis.UniversalClient, retention time.Duration, ins instrument.Instrumentation) *Cache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Cache{client: client, retention: retention, ins: ins}
}

func tokenKey(email string, purpose entity.OTPPurpose) string {
	return keyPrefix + purpose.String() + ":" + email
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("identity.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Cache) CreateOTP(ctx context.Context, token entity.OTPToken, now time.Time) (err error) {
	ctx, span := c.startSpan(ctx, "CreateOTP")
	defer func() { c.endSpan(span, err) }()

	metadata := token.Metadata
	if metadata == nil {
		metadata = valueobject.JSONMap{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	ttl := token.ExpiresAt.Sub(now) + c.retention
	created, err := createScript.Run(ctx, c.client, []string{tokenKey(token.Email, token.Purpose)},
		token.ID,
		token.CodeDigest,
		token.ExpiresAt.UnixMicro(),
		meta,
		token.CreatedAt.UnixMicro(),
		now.UnixMicro(),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return goerror.ErrConflict
	}

	return nil
}

func (c *Cache) GetOTP(ctx context.Context, email string, purpose entity.OTPPurpose, codeDigest string) (_ *entity.OTPToken, err error) {
	ctx, span := c.startSpan(ctx, "GetOTP")
	defer func() { c.endSpan(span, err) }()

	fields, err := c.client.HGetAll(ctx, tokenKey(email, purpose)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["digest"] != codeDigest {
		return nil, goerror.ErrNotFound
	}

	return decodeToken(email, purpose, fields)
}

func (c *Cache) IncrementOTPAttempts(ctx context.Context, token *entity.OTPToken) (_ int, err error) {
	ctx, span := c.startSpan(ctx, "IncrementOTPAttempts")
	defer func() { c.endSpan(span, err) }()

	n, err := incrementScript.Run(ctx, c.client, []string{tokenKey(token.Email, token.Purpose)},
		strconv.FormatInt(token.ID, 10)).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, goerror.ErrNotFound
	}

	return n, nil
}

func (c *Cache) DeleteOTP(ctx context.Context, token *entity.OTPToken) (err error) {
	ctx, span := c.startSpan(ctx, "DeleteOTP")
	defer func() { c.endSpan(span, err) }()

	n, err := deleteScript.Run(ctx, c.client, []string{tokenKey(token.Email, token.Purpose)},
		strconv.FormatInt(token.ID, 10)).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

// SweepExpiredOTP is a no-op: every key carries its own TTL.
func (c *Cache) SweepExpiredOTP(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeToken(email string, purpose entity.OTPPurpose, fields map[string]string) (*entity.OTPToken, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, err
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, err
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, err
	}

	var metadata valueobject.JSONMap
	if err := metadata.Scan(fields["metadata"]); err != nil {
		return nil, err
	}

	return &entity.OTPToken{
		ID:         id,
		Email:      email,
		CodeDigest: fields["digest"],
		Purpose:    purpose,
		ExpiresAt:  time.UnixMicro(expiresAt).UTC(),
		Attempts:   attempts,
		Metadata:   metadata,
		CreatedAt:  time.UnixMicro(createdAt).UTC(),
	}, nil
}
