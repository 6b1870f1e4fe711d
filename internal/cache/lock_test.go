package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"live_meeting/internal/errorx"
	"live_meeting/internal/metrics"
)

func TestLockAcquireRelease(t *testing.T) {
	mr, store := newTestStore(t)
	locker := NewLocker(store, nil)
	ctx := context.Background()

	lock, ok, err := locker.Acquire(ctx, "room-1", "100", time.Second, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "room-1", lock.Name)

	val, err := mr.Get("test:lock:room-1")
	require.NoError(t, err)
	assert.Equal(t, lock.Token, val)
	assert.Equal(t, 10*time.Second, mr.TTL("test:lock:room-1"))

	released, err := locker.Release(ctx, lock)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("test:lock:room-1"))
}

func TestLockAcquireTimeout(t *testing.T) {
	_, store := newTestStore(t)
	locker := NewLocker(store, nil)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "room-1", "a", time.Second, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	_, ok, err = locker.Acquire(ctx, "room-1", "b", 20*time.Millisecond, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLockReleaseByFormerOwner(t *testing.T) {
	mr, store := newTestStore(t)
	locker := NewLocker(store, nil)
	ctx := context.Background()

	first, ok, err := locker.Acquire(ctx, "room-1", "same-holder", time.Second, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// 第一个持有者的锁已过期，被其他请求抢到
	mr.FastForward(2 * time.Second)
	second, ok, err := locker.Acquire(ctx, "room-1", "same-holder", time.Second, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, first.Token, second.Token)

	released, err := locker.Release(ctx, first)
	require.NoError(t, err)
	assert.False(t, released)

	val, err := mr.Get("test:lock:room-1")
	require.NoError(t, err)
	assert.Equal(t, second.Token, val)
}

func TestWithLockMutualExclusion(t *testing.T) {
	_, store := newTestStore(t)
	locker := NewLocker(store, nil)
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return locker.WithLock(ctx, "poll", "worker", 5*time.Second, 5*time.Second, func() error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				runs.Add(1)
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 8, runs.Load())
	assert.EqualValues(t, 1, maxSeen.Load())
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, store := newTestStore(t)
	locker := NewLocker(store, nil)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "room-2", "a", time.Second, 10*time.Second, func() error {
		assert.True(t, mr.Exists("test:lock:room-2"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:lock:room-2"))
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	mr, store := newTestStore(t)
	locker := NewLocker(store, nil)

	assert.Panics(t, func() {
		_ = locker.WithLock(context.Background(), "room-3", "a", time.Second, 10*time.Second, func() error {
			panic("bug")
		})
	})
	assert.False(t, mr.Exists("test:lock:room-3"))
}

func TestWithLockBusy(t *testing.T) {
	_, store := newTestStore(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	locker := NewLocker(store, m)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "room-4", "a", time.Second, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = locker.WithLock(ctx, "room-4", "b", 10*time.Millisecond, 10*time.Second, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, errorx.ErrBusy)
	assert.False(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquireTotal.WithLabelValues("acquired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquireTotal.WithLabelValues("timeout")))
}

func TestLockStoreUnavailable(t *testing.T) {
	mr, store := newTestStore(t)
	locker := NewLocker(store, nil)
	mr.Close()

	_, ok, err := locker.Acquire(context.Background(), "room-5", "a", 10*time.Millisecond, time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
