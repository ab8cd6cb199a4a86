package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLock(t *testing.T, ttl time.Duration) (*RedisTurnLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTurnLock(client, ttl), mr
}

func TestRedisTurnLock_ExclusivePerSession(t *testing.T) {
	lock, _ := newLock(t, time.Minute)
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	releaseOther, ok, err := lock.TryAcquire(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, ok, "other sessions are independent")
	releaseOther()

	release()
	release2, ok, err := lock.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisTurnLock_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	lock, mr := newLock(t, time.Second)
	ctx := context.Background()

	staleRelease, ok, err := lock.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	freshRelease, ok, err := lock.TryAcquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	staleRelease()
	assert.True(t, mr.Exists(turnLockKey("s1")), "stale token must not delete the new holder's lock")

	freshRelease()
	assert.False(t, mr.Exists(turnLockKey("s1")))
}
