package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLock_AcquireRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "task:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := mr.Get(lockPrefix + "task:1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(value, lock.OwnerID()+":"))

	ok, err = lock.Acquire(ctx, "task:1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lock is not reentrant")

	require.NoError(t, lock.Release(ctx, "task:1"))
	assert.False(t, mr.Exists(lockPrefix+"task:1"))

	ok, err = lock.Acquire(ctx, "task:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_OtherInstanceCannotTakeOrRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	ok, err := lock1.Acquire(ctx, "record:4:notion", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock2.Acquire(ctx, "record:4:notion", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock2.Release(ctx, "record:4:notion"))
	ok, _ = lock2.Acquire(ctx, "record:4:notion", 10*time.Second)
	assert.False(t, ok, "release by a non-owner must not free the lock")

	err = lock2.Extend(ctx, "record:4:notion", 20*time.Second)
	assert.True(t, errors.Is(err, ErrLockNotHeld))
}

func TestLock_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)
	other := NewLock(client)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "schedule:nightly", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = other.Acquire(ctx, "schedule:nightly", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, lock.Extend(ctx, "schedule:nightly", time.Minute), ErrLockNotHeld)
	require.NoError(t, lock.Release(ctx, "schedule:nightly"))
	assert.True(t, mr.Exists(lockPrefix+"schedule:nightly"))
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	assert.ErrorIs(t, lock.Extend(ctx, "task:9", time.Minute), ErrLockNotHeld)

	ok, err := lock.Acquire(ctx, "task:9", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Extend(ctx, "task:9", time.Minute))
	assert.True(t, mr.TTL(lockPrefix+"task:9") > 30*time.Second)
}

func TestLock_Ping(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewLock(client).Ping(context.Background()))
}
