package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ayurclinic"),
		postgres.WithUsername("ayurclinic"),
		postgres.WithPassword("ayurclinic"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewDB(pool, instrument.NewNoop())
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migration is idempotent")

	return db
}

func TestDB_Users(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := db.GetUserByEmail(ctx, "asha@x.com")
	require.ErrorIs(t, err, goerror.ErrNotFound)

	user := entity.User{
		ID:            1,
		Email:         "asha@x.com",
		Name:          "Asha Rao",
		PasswordHash:  "hash-1",
		Role:          entity.RolePractitioner,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.CreateUser(ctx, user))

	dup := user
	dup.ID = 2
	require.ErrorIs(t, db.CreateUser(ctx, dup), goerror.ErrConflict)

	got, err := db.GetUserByEmail(ctx, "asha@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.Name, got.Name)
	assert.Equal(t, entity.RolePractitioner, got.Role)
	assert.True(t, got.EmailVerified)
	assert.True(t, now.Equal(got.CreatedAt))

	require.NoError(t, db.UpdateUserPassword(ctx, "asha@x.com", "hash-2"))
	got, err = db.GetUserByEmail(ctx, "asha@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.PasswordHash)

	require.ErrorIs(t, db.UpdateUserPassword(ctx, "ghost@x.com", "hash"), goerror.ErrNotFound)
}

func TestDB_OTPLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	token := entity.OTPToken{
		ID:         10,
		Email:      "asha@x.com",
		CodeDigest: "digest-a",
		Purpose:    entity.OTPPurposeRegistration,
		ExpiresAt:  now.Add(10 * time.Minute),
		Metadata:   valueobject.JSONMap{entity.MetadataName: "Asha Rao"},
		CreatedAt:  now,
	}
	require.NoError(t, db.CreateOTP(ctx, token, now))

	again := token
	again.ID = 11
	again.CodeDigest = "digest-b"
	require.ErrorIs(t, db.CreateOTP(ctx, again, now.Add(time.Minute)), goerror.ErrConflict)

	other := again
	other.Purpose = entity.OTPPurposePasswordReset
	require.NoError(t, db.CreateOTP(ctx, other, now), "purposes do not collide")

	_, err := db.GetOTP(ctx, "asha@x.com", entity.OTPPurposeRegistration, "digest-b")
	require.ErrorIs(t, err, goerror.ErrNotFound)

	got, err := db.GetOTP(ctx, "asha@x.com", entity.OTPPurposeRegistration, "digest-a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, "Asha Rao", got.Name())
	assert.True(t, token.ExpiresAt.Equal(got.ExpiresAt))

	for want := 1; want <= 3; want++ {
		n, err := db.IncrementOTPAttempts(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, db.DeleteOTP(ctx, got))
	require.ErrorIs(t, db.DeleteOTP(ctx, got), goerror.ErrNotFound)
	_, err = db.IncrementOTPAttempts(ctx, got)
	require.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_OTPReplaceExpiredAndSweep(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first := entity.OTPToken{
		ID:         20,
		Email:      "asha@x.com",
		CodeDigest: "digest-a",
		Purpose:    entity.OTPPurposeRegistration,
		ExpiresAt:  now.Add(10 * time.Minute),
		CreatedAt:  now,
	}
	require.NoError(t, db.CreateOTP(ctx, first, now))

	later := now.Add(11 * time.Minute)
	second := first
	second.ID = 21
	second.CodeDigest = "digest-b"
	second.ExpiresAt = later.Add(10 * time.Minute)
	second.CreatedAt = later
	require.NoError(t, db.CreateOTP(ctx, second, later), "expired row is replaced")

	got, err := db.GetOTP(ctx, "asha@x.com", entity.OTPPurposeRegistration, "digest-b")
	require.NoError(t, err)
	assert.Equal(t, int64(21), got.ID)
	assert.Zero(t, got.Attempts)

	stale := entity.OTPToken{
		ID:         22,
		Email:      "old@x.com",
		CodeDigest: "digest-c",
		Purpose:    entity.OTPPurposePasswordReset,
		ExpiresAt:  now,
		CreatedAt:  now.Add(-10 * time.Minute),
	}
	require.NoError(t, db.CreateOTP(ctx, stale, now))

	n, err := db.SweepExpiredOTP(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetOTP(ctx, "old@x.com", entity.OTPPurposePasswordReset, "digest-c")
	require.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_OTPConcurrentCreate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	const workers = 16
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.CreateOTP(ctx, entity.OTPToken{
				ID:         int64(100 + i),
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

	got, err := db.GetOTP(ctx, "race@x.com", entity.OTPPurposeRegistration, fmt.Sprintf("digest-%d", winner))
	require.NoError(t, err)
	assert.Equal(t, int64(100+winner), got.ID)
}
