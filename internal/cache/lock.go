package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"live_meeting/internal/errorx"
	"live_meeting/internal/metrics"
)

const defaultLockRetryInterval = time.Millisecond

// Lock 一次成功加锁得到的凭证，只有持有相同 Token 的调用方才能释放
type Lock struct {
	Name     string
	Token    string
	Deadline time.Time
}

// Locker 基于 SET NX PX + 比较删除脚本的分布式互斥锁
// 加锁是自旋等待，不保证公平性
type Locker struct {
	store   *Store
	metrics *metrics.Metrics
	retry   time.Duration
	now     func() time.Time
}

func NewLocker(store *Store, m *metrics.Metrics) *Locker {
	return &Locker{
		store:   store,
		metrics: m,
		retry:   defaultLockRetryInterval,
		now:     time.Now,
	}
}

// Acquire 在 acquireTimeout 内不断尝试加锁，锁在 lockTimeout 后自动过期
// 超时返回 ok=false，存储异常返回 error
func (l *Locker) Acquire(ctx context.Context, name, holder string, acquireTimeout, lockTimeout time.Duration) (Lock, bool, error) {
	key := l.store.Key(lockDomain, name)
	token := holder + ":" + uuid.NewString()
	start := l.now()
	end := start.Add(acquireTimeout)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		ok, err := l.store.SetNX(ctx, key, token, lockTimeout)
		if err != nil {
			l.metrics.IncLockAcquire("error")
			return Lock{}, false, err
		}
		now := l.now()
		if ok {
			l.metrics.IncLockAcquire("acquired")
			l.metrics.ObserveLockWait(now.Sub(start).Milliseconds())
			return Lock{Name: name, Token: token, Deadline: now.Add(lockTimeout)}, true, nil
		}
		if !now.Before(end) {
			l.metrics.IncLockAcquire("timeout")
			l.metrics.ObserveLockWait(now.Sub(start).Milliseconds())
			return Lock{}, false, nil
		}

		timer.Reset(l.retry)
		select {
		case <-ctx.Done():
			l.metrics.IncLockAcquire("error")
			return Lock{}, false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release 只删除自己持有的锁，锁已过期或被他人持有时返回 false
func (l *Locker) Release(ctx context.Context, lock Lock) (bool, error) {
	released, err := l.store.CompareAndDelete(ctx, l.store.Key(lockDomain, lock.Name), lock.Token)
	switch {
	case err != nil:
		l.metrics.IncLockRelease("error")
	case released:
		l.metrics.IncLockRelease("released")
	default:
		l.metrics.IncLockRelease("not_owner")
	}
	return released, err
}

// WithLock 加锁后执行 fn，任何退出路径都会释放锁
// 拿不到锁时返回 errorx.ErrBusy
func (l *Locker) WithLock(ctx context.Context, name, holder string, acquireTimeout, lockTimeout time.Duration,
	fn func() error) (err error) {
	lock, ok, err := l.Acquire(ctx, name, holder, acquireTimeout, lockTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.Newf(errorx.CodeBusy, "can not lock: %s", name)
	}

	defer func() {
		// 使用独立的 context，调用方取消后也要尽量把锁还回去
		released, rerr := l.Release(context.WithoutCancel(ctx), lock)
		if rerr != nil {
			logx.WithContext(ctx).Errorf("release lock %s failed: %v", name, rerr)
			if err == nil {
				err = rerr
			}
			return
		}
		if !released {
			logx.WithContext(ctx).Infof("lock %s expired before release", name)
		}
	}()

	return fn()
}
