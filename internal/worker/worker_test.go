package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/goleak"

	"live_meeting/internal/cache"
	"live_meeting/internal/errorx"
	"live_meeting/internal/logic"
	"live_meeting/internal/metrics"
)

func TestMain(m *testing.M) {
	logx.Disable()
	os.Exit(m.Run())
}

type fakeCloser struct {
	mu     sync.Mutex
	calls  map[int64]int
	handle func(id int64, attempt int) (bool, error)
}

func newFakeCloser(handle func(id int64, attempt int) (bool, error)) *fakeCloser {
	return &fakeCloser{calls: make(map[int64]int), handle: handle}
}

func (c *fakeCloser) Stop(_ context.Context, number, invoker int64) (bool, error) {
	if invoker != logic.SystemUser {
		return false, errors.New("unexpected invoker")
	}
	c.mu.Lock()
	c.calls[number]++
	attempt := c.calls[number]
	c.mu.Unlock()
	return c.handle(number, attempt)
}

func (c *fakeCloser) attempts(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func (c *fakeCloser) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// newQueue 调用方负责在 goleak 检查之前执行返回的 cleanup
func newQueue(t *testing.T) (*cache.DelayQueue, func()) {
	t.Helper()
	_, queue, cleanup := newQueueWithServer(t)
	return queue, cleanup
}

func newQueueWithServer(t *testing.T) (*miniredis.Miniredis, *cache.DelayQueue, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, cache.NewDelayQueue(cache.NewStore(rds, "test")), func() {
		_ = rds.Close()
		mr.Close()
	}
}

func TestWorkerClosesDueMeetings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	queue, cleanup := newQueue(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	for _, id := range []int64{1, 3, 4, 5, 6} {
		require.NoError(t, queue.Push(ctx, id, now.Add(-time.Minute)))
	}
	require.NoError(t, queue.Push(ctx, 2, now.Add(time.Minute)))

	closer := newFakeCloser(func(id int64, _ int) (bool, error) {
		switch id {
		case 3:
			return false, errorx.Newf(errorx.CodeMeetingNotFound, "meeting number: %d", id)
		case 4:
			return false, errorx.Internal(errorx.CodeMeetingDatabase, errors.New("connection refused"))
		case 5:
			return false, nil
		case 6:
			panic("boom")
		}
		return true, nil
	})

	m := metrics.NewMetrics(prometheus.NewRegistry())
	w := New(queue, closer, m, time.Hour)
	w.now = func() time.Time { return now }

	h, err := w.Start(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return closer.total() == 5 }, time.Second, 5*time.Millisecond)
	h.Stop()
	assert.False(t, h.Running())

	assert.Zero(t, closer.attempts(2))

	due, err := queue.Due(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, due)
	due, err = queue.Due(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6, 2}, due)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosureTotal.WithLabelValues(resultClosed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosureTotal.WithLabelValues(resultDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosureTotal.WithLabelValues(resultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosureTotal.WithLabelValues(resultRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosureTotal.WithLabelValues(resultPanic)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DueMeetings))
}

func TestWorkerSkipsInvalidQueueMember(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	mr, queue, cleanup := newQueueWithServer(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, queue.Push(ctx, 1, now.Add(-time.Minute)))
	require.NoError(t, queue.Push(ctx, 2, now.Add(-time.Minute)))
	_, err := mr.ZAdd("test:delay_queue", float64(now.Unix()-120), "garbage")
	require.NoError(t, err)

	closer := newFakeCloser(func(int64, int) (bool, error) { return true, nil })
	w := New(queue, closer, nil, time.Hour)
	w.now = func() time.Time { return now }

	h, err := w.Start(ctx)
	require.NoError(t, err)
	// 非法成员被移除，两个会议关闭后出队
	require.Eventually(t, func() bool { return !mr.Exists("test:delay_queue") }, time.Second, 5*time.Millisecond)
	h.Stop()

	assert.Equal(t, 1, closer.attempts(1))
	assert.Equal(t, 1, closer.attempts(2))
}

func TestWorkerRetriesUntilClosed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	queue, cleanup := newQueue(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, queue.Push(ctx, 42, time.Now().Add(-time.Second)))

	closer := newFakeCloser(func(_ int64, attempt int) (bool, error) {
		if attempt < 3 {
			return false, nil
		}
		return true, nil
	})

	w := New(queue, closer, nil, 10*time.Millisecond)
	h, err := w.Start(ctx)
	require.NoError(t, err)
	defer h.Stop()

	require.Eventually(t, func() bool {
		due, err := queue.Due(ctx, time.Now())
		return err == nil && len(due) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, closer.attempts(42))
}

func TestWorkerStartOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	queue, cleanup := newQueue(t)
	defer cleanup()

	w := New(queue, newFakeCloser(func(int64, int) (bool, error) { return true, nil }), nil, time.Hour)

	h, err := w.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Running())

	again, err := w.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Same(t, h, again)

	w.Stop()
	assert.False(t, h.Running())

	restarted, err := w.Start(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, h, restarted)
	restarted.Stop()
}

func TestWorkerStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	queue, cleanup := newQueue(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	w := New(queue, newFakeCloser(func(int64, int) (bool, error) { return true, nil }), nil, time.Hour)
	h, err := w.Start(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}

func TestWorkerService(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	queue, cleanup := newQueue(t)
	defer cleanup()

	w := New(queue, newFakeCloser(func(int64, int) (bool, error) { return true, nil }), nil, time.Hour)
	svc := w.Service()

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Start()
	}()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.handle != nil
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service Start did not return after Stop")
	}
}
