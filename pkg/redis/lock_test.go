package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_TryRefreshLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	ran := false
	err := locker.TryRefreshLock(ctx, "p1", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(client.KeyBuilder.KeyRefreshLock("p1")))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(client.KeyBuilder.KeyRefreshLock("p1")), "lock released")
}

func TestLocker_HeldLockIsNotWaitedOn(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	err := locker.TryRefreshLock(ctx, "p1", func(ctx context.Context) error {
		inner := locker.TryRefreshLock(ctx, "p1", func(ctx context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// other polls are independent
		return locker.TryRefreshLock(ctx, "p2", func(ctx context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestLocker_ActionErrorIsReturned(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewLocker(client)

	boom := errors.New("boom")
	err := locker.TryRefreshLock(context.Background(), "p1", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// the lock was released despite the error
	err = locker.TryRefreshLock(context.Background(), "p1", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}
