package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStateTracker_Exec(t *testing.T) {
	client := newRedis(t)
	tracker := New(client)
	ctx := context.Background()

	t.Run("runs once then reports completed", func(t *testing.T) {
		calls := 0
		fn := func(context.Context) error { calls++; return nil }

		require.NoError(t, tracker.Exec(ctx, "evt-1", fn))
		assert.ErrorIs(t, tracker.Exec(ctx, "evt-1", fn), ErrAlreadyCompleted)
		assert.Equal(t, 1, calls)
	})

	t.Run("failed run is remembered", func(t *testing.T) {
		boom := errors.New("smtp down")

		err := tracker.Exec(ctx, "evt-2", func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)

		err = tracker.Exec(ctx, "evt-2", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrAlreadyFailed)
	})

	t.Run("failed run may be retried when asked", func(t *testing.T) {
		_ = tracker.Exec(ctx, "evt-3", func(context.Context) error { return errors.New("x") })

		called := false
		err := tracker.Exec(ctx, "evt-3", func(context.Context) error { called = true; return nil }, WithRetryFailed())
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("in progress", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "idempotency:evt-4", string(StateInProgress), time.Minute).Err())
		assert.ErrorIs(t, tracker.Exec(ctx, "evt-4", func(context.Context) error { return nil }), ErrAlreadyInProgress)
	})

	t.Run("unknown state", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "idempotency:evt-5", "garbage", time.Minute).Err())
		assert.ErrorIs(t, tracker.Exec(ctx, "evt-5", func(context.Context) error { return nil }), ErrInvalidState)
	})
}
