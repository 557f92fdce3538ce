package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/care-scheduling/internal/config"
)

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	assert.Equal(t, 20, rdb.Options().PoolSize)
	assert.Equal(t, 2, rdb.Options().MinIdleConns)
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)

	_, err = NewRedisClient(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Config{
		RedisAddr:     "cache:6379",
		RedisUsername: "svc",
		RedisPassword: "secret",
	}, "notify-worker")

	assert.Equal(t, Options{
		Addr:       "cache:6379",
		Username:   "svc",
		Password:   "secret",
		ClientName: "notify-worker",
	}, opts)
}

func TestWithSlotLockExcludesSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	locker := NewRedisSlotLocker(rdb, 5*time.Second)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	var inner error
	err = locker.WithSlotLock(context.Background(), doctor, at, func(ctx context.Context) error {
		assert.True(t, mr.Exists(SlotLockKey(doctor, at)))
		inner = locker.WithSlotLock(ctx, doctor, at, func(context.Context) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrLockNotAcquired)
	assert.False(t, mr.Exists(SlotLockKey(doctor, at)), "lock released after fn returns")

	// Another instant of the same doctor is independent.
	err = locker.WithSlotLock(context.Background(), doctor, at.Add(time.Hour), func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestWithSlotLockPropagatesFnError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	locker := NewRedisSlotLocker(rdb, time.Second)
	boom := errors.New("boom")
	err = locker.WithSlotLock(context.Background(), uuid.New(), time.Now(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestReleaseLeavesForeignTokenAlone(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	l := &redisSlotLocker{client: rdb, ttl: time.Second}
	require.NoError(t, mr.Set("lock:slot:x", "someone-else"))

	require.NoError(t, l.release(context.Background(), "lock:slot:x", "mine"))
	got, err := mr.Get("lock:slot:x")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
