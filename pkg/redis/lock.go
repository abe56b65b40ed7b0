package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

// ErrLockNotAcquired is returned when another holder owns the lock
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker hands out distributed mutexes backed by Redis
type Locker struct {
	rs   *redsync.Redsync
	keys *KeyBuilder
}

// NewLocker creates a Locker sharing c's connection pool
func NewLocker(c *Client) *Locker {
	return &Locker{
		rs:   redsync.New(goredis.NewPool(c.rdb)),
		keys: c.KeyBuilder,
	}
}

// TryRefreshLock runs action while holding the refresh lock for pollID.
// It does not wait: if the lock is held elsewhere it returns ErrLockNotAcquired.
func (l *Locker) TryRefreshLock(ctx context.Context, pollID string, action func(ctx context.Context) error) error {
	return l.TryWithLock(ctx, l.keys.KeyRefreshLock(pollID), TTLRefreshLock, action)
}

// TryWithLock runs action under the named mutex without retrying acquisition
func (l *Locker) TryWithLock(ctx context.Context, name string, expiry time.Duration, action func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(expiry),
		redsync.WithTries(1),
		redsync.WithDriftFactor(0.01),
	)

	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return ErrLockNotAcquired
		}
		return err
	}

	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = mutex.UnlockContext(unlockCtx)
	}()

	return action(ctx)
}
