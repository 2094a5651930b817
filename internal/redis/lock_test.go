package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestWithSlotLockRunsAndReleases(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	ran := false
	err := locker.WithSlotLock(context.Background(), "doc-1:2025-03-10:08:00", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:slot:doc-1:2025-03-10:08:00"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:slot:doc-1:2025-03-10:08:00"), "lock should be released")
}

func TestWithSlotLockContention(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		t.Fatal("second holder must not enter")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	close(release)
	require.NoError(t, <-done)

	// Free again after the first holder returns.
	require.NoError(t, locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error { return nil }))
}

func TestWithSlotLockPropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	boom := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:slot:k"))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, time.Second)

	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		// Simulate expiry and takeover by another instance.
		mr.Del("lock:slot:k")
		require.NoError(t, mr.Set("lock:slot:k", "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:slot:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithSlotLockSingleWinner(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	const contenders = 8
	hold := make(chan struct{})
	results := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		go func() {
			results <- locker.WithSlotLock(context.Background(), "same", func(ctx context.Context) error {
				<-hold
				return nil
			})
		}()
	}

	// The winner blocks on hold, so the first results all come from losers.
	for i := 0; i < contenders-1; i++ {
		assert.ErrorIs(t, <-results, ErrLockNotAcquired)
	}
	close(hold)
	assert.NoError(t, <-results)
}
