package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"live_meeting/internal/cache"
	"live_meeting/internal/errorx"
	"live_meeting/internal/logic"
	"live_meeting/internal/metrics"
)

const (
	resultClosed  = "closed"
	resultRetry   = "retry"
	resultFailed  = "failed"
	resultDropped = "dropped"
	resultPanic   = "panic"
)

const defaultInterval = 20 * time.Second

var ErrAlreadyRunning = errors.New("worker: already running")

// Closer 关闭会议，返回会议最终是否已关闭
type Closer interface {
	Stop(ctx context.Context, number, invoker int64) (bool, error)
}

// Worker 周期性地关闭延迟队列中到期的会议
// 队列条目只有在会议确认关闭（或会议已不存在）后才会移除，失败的条目下一轮重试
type Worker struct {
	queue    *cache.DelayQueue
	closer   Closer
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	handle *Handle
}

func New(queue *cache.DelayQueue, closer Closer, m *metrics.Metrics, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		queue:    queue,
		closer:   closer,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

// Handle 一次 Start 启动的循环
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Stop 取消循环并等待当前一轮处理结束
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start 启动后台循环，同一个 Worker 同时只会有一个循环
// 已在运行时返回正在运行的 Handle 和 ErrAlreadyRunning
func (w *Worker) Start(ctx context.Context) (*Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle != nil && w.handle.Running() {
		return w.handle, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	w.handle = h

	threading.GoSafe(func() {
		defer close(h.done)
		w.run(ctx)
	})

	logx.Infof("closure worker started, interval: %s", w.interval)
	return h, nil
}

// Stop 停止正在运行的循环，没有运行时直接返回
func (w *Worker) Stop() {
	w.mu.Lock()
	h := w.handle
	w.mu.Unlock()

	if h != nil {
		h.Stop()
	}
}

func (w *Worker) run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	// 启动后先处理一轮
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			logx.Info("closure worker stopped")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	ids, err := w.queue.Due(ctx, w.now())
	if err != nil {
		logx.WithContext(ctx).Errorf("failed to read due meetings: %v", err)
		return
	}

	w.metrics.SetDue(len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		w.closeMeeting(ctx, id)
	}
}

// closeMeeting 单个会议的异常不影响其余会议
func (w *Worker) closeMeeting(ctx context.Context, id int64) {
	logger := logx.WithContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			logx.Severef("closing meeting %d panic: %v\n%s", id, p, debug.Stack())
			w.metrics.IncClosure(resultPanic)
		}
	}()

	stopped, err := w.closer.Stop(ctx, id, logic.SystemUser)
	switch {
	case errors.Is(err, errorx.ErrMeetingNotFound):
		logger.Infof("meeting %d not found, remove it from delay queue", id)
		w.pop(ctx, id)
		w.metrics.IncClosure(resultDropped)
	case err != nil:
		logger.Errorf("failed to close meeting %d: %v", id, err)
		w.metrics.IncClosure(resultFailed)
	case !stopped:
		logger.Infof("meeting %d not closed, retry next round", id)
		w.metrics.IncClosure(resultRetry)
	default:
		w.pop(ctx, id)
		logger.Infof("closed meeting %d", id)
		w.metrics.IncClosure(resultClosed)
	}
}

func (w *Worker) pop(ctx context.Context, id int64) {
	if err := w.queue.Pop(ctx, id); err != nil {
		logx.WithContext(ctx).Errorf("failed to remove meeting %d from delay queue: %v", id, err)
	}
}
