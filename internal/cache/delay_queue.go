package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// DelayQueue 按到期时间（秒）排序的待关闭会议集合
// Due 只读取不删除，处理成功后由消费方 Pop，崩溃后下次轮询会再次取到
type DelayQueue struct {
	store *Store
}

func NewDelayQueue(store *Store) *DelayQueue {
	return &DelayQueue{store: store}
}

// Push 同一个会议重复 Push 会覆盖到期时间
func (q *DelayQueue) Push(ctx context.Context, meetingID int64, due time.Time) error {
	return q.store.ZAdd(ctx, q.store.Key(delayQueueDomain), strconv.FormatInt(meetingID, 10), float64(due.Unix()))
}

func (q *DelayQueue) Pop(ctx context.Context, meetingID int64) error {
	return q.store.ZRem(ctx, q.store.Key(delayQueueDomain), strconv.FormatInt(meetingID, 10))
}

// Due 返回到期时间不晚于 now 的所有会议
func (q *DelayQueue) Due(ctx context.Context, now time.Time) ([]int64, error) {
	key := q.store.Key(delayQueueDomain)
	vals, err := q.store.ZRangeByScore(ctx, key, 0, now.Unix())
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			// 非法成员移除后跳过
			logger := logx.WithContext(ctx)
			logger.Errorf("drop invalid member %q in %s: %v", v, key, err)
			if err := q.store.ZRem(ctx, key, v); err != nil {
				logger.Errorf("failed to remove invalid member %q in %s: %v", v, key, err)
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
