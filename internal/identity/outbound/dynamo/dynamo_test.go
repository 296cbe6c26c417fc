package dynamo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/docker/go-connections/nat"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const localPort = nat.Port("8000/tcp")

func newTestDynamo(t *testing.T) *Dynamo {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx := context.Background()
	ctr, err := testcontainers.Run(ctx, "amazon/dynamodb-local:2.5.2",
		testcontainers.WithExposedPorts(string(localPort)),
		testcontainers.WithWaitStrategy(wait.ForListeningPort(localPort)),
	)
	if err != nil {
		t.Skipf("dynamodb-local container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, localPort)
	require.NoError(t, err)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
	require.NoError(t, err)

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("http://%s:%s", host, port.Port()))
	})

	d := NewDynamo(client, "", time.Hour, instrument.NewNoop())
	require.NoError(t, d.EnsureTable(ctx))
	// second call hits the existing table
	require.NoError(t, d.EnsureTable(ctx))

	return d
}

func TestDynamo_OTPLifecycle(t *testing.T) {
	d := newTestDynamo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	token := entity.OTPToken{
		ID:         21,
		Email:      "ravi@x.com",
		CodeDigest: "digest-a",
		Purpose:    entity.OTPPurposePasswordReset,
		ExpiresAt:  now.Add(10 * time.Minute),
		Metadata:   valueobject.JSONMap{entity.MetadataName: "Ravi"},
		CreatedAt:  now,
	}
	require.NoError(t, d.CreateOTP(ctx, token, now))

	err := d.CreateOTP(ctx, token, now.Add(time.Minute))
	assert.ErrorIs(t, err, goerror.ErrConflict)

	_, err = d.GetOTP(ctx, token.Email, token.Purpose, "digest-b")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	_, err = d.GetOTP(ctx, token.Email, entity.OTPPurposeRegistration, "digest-a")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	got, err := d.GetOTP(ctx, token.Email, token.Purpose, "digest-a")
	require.NoError(t, err)
	assert.Equal(t, int64(21), got.ID)
	assert.Equal(t, token.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, "Ravi", got.Name())
	assert.Zero(t, got.Attempts)

	attempts, err := d.IncrementOTPAttempts(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	attempts, err = d.IncrementOTPAttempts(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	stale := *got
	stale.ID = 99
	_, err = d.IncrementOTPAttempts(ctx, &stale)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	assert.ErrorIs(t, d.DeleteOTP(ctx, &stale), goerror.ErrNotFound)

	require.NoError(t, d.DeleteOTP(ctx, got))
	assert.ErrorIs(t, d.DeleteOTP(ctx, got), goerror.ErrNotFound)

	n, err := d.SweepExpiredOTP(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDynamo_CreateReplacesExpired(t *testing.T) {
	d := newTestDynamo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := entity.OTPToken{
		ID:         1,
		Email:      "meera@x.com",
		CodeDigest: "old",
		Purpose:    entity.OTPPurposeRegistration,
		ExpiresAt:  now.Add(time.Minute),
		CreatedAt:  now,
	}
	require.NoError(t, d.CreateOTP(ctx, old, now))

	later := now.Add(2 * time.Minute)
	fresh := old
	fresh.ID = 2
	fresh.CodeDigest = "new"
	fresh.ExpiresAt = later.Add(10 * time.Minute)
	fresh.CreatedAt = later
	require.NoError(t, d.CreateOTP(ctx, fresh, later))

	got, err := d.GetOTP(ctx, old.Email, old.Purpose, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
	assert.NotNil(t, got.Metadata)
}

func TestDynamo_OTPConcurrentCreate(t *testing.T) {
	d := newTestDynamo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	const workers = 16
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.CreateOTP(ctx, entity.OTPToken{
				ID:         int64(300 + i),
				Email:      "race@x.com",
				CodeDigest: fmt.Sprintf("digest-%d", i),
				Purpose:    entity.OTPPurposeRegistration,
				ExpiresAt:  now.Add(10 * time.Minute),
				CreatedAt:  now,
			}, now)
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one live token created")
			winner = i
			continue
		}
		require.ErrorIs(t, err, goerror.ErrConflict)
	}
	require.NotEqual(t, -1, winner, "no token created")

	got, err := d.GetOTP(ctx, "race@x.com", entity.OTPPurposeRegistration, fmt.Sprintf("digest-%d", winner))
	require.NoError(t, err)
	assert.Equal(t, int64(300+winner), got.ID)
}
