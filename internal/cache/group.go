package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/jsonx"

	"live_meeting/internal/types"
)

// GroupState 会议分组布局，以 JSON 形式保存
type GroupState struct {
	store          *Store
	locker         *Locker
	acquireTimeout time.Duration
	lockTimeout    time.Duration
}

func NewGroupState(store *Store, locker *Locker, acquireTimeout, lockTimeout time.Duration) *GroupState {
	return &GroupState{
		store:          store,
		locker:         locker,
		acquireTimeout: acquireTimeout,
		lockTimeout:    lockTimeout,
	}
}

func groupLockName(meetingID int64) string {
	return fmt.Sprintf("new-group-lock-%d", meetingID)
}

// Open 在会议级别的锁内 SET NX 写入分组布局，已存在时返回 false
// 拿不到锁返回 errorx.ErrBusy
func (g *GroupState) Open(ctx context.Context, meetingID int64, groups []types.Group, ttl time.Duration) (bool, error) {
	info, err := jsonx.Marshal(groups)
	if err != nil {
		return false, err
	}

	var opened bool
	err = g.locker.WithLock(ctx, groupLockName(meetingID), fmt.Sprintf("%d-lock", meetingID),
		g.acquireTimeout, g.lockTimeout, func() error {
			var err error
			opened, err = g.store.SetNX(ctx, g.store.idKey(groupDomain, meetingID), info, ttl)
			return err
		})
	return opened, err
}

// Get 会议未开启分组时 ok=false
func (g *GroupState) Get(ctx context.Context, meetingID int64) ([]types.Group, bool, error) {
	val, ok, err := g.store.Get(ctx, g.store.idKey(groupDomain, meetingID))
	if err != nil || !ok {
		return nil, false, err
	}

	var groups []types.Group
	if err := jsonx.Unmarshal([]byte(val), &groups); err != nil {
		return nil, false, fmt.Errorf("cache: decode group info of %d: %w", meetingID, err)
	}
	return groups, true, nil
}

// Update 仅在分组已存在时覆盖，后写者生效；返回 false 表示分组已被关闭
func (g *GroupState) Update(ctx context.Context, meetingID int64, groups []types.Group) (bool, error) {
	info, err := jsonx.Marshal(groups)
	if err != nil {
		return false, err
	}
	return g.store.SetXX(ctx, g.store.idKey(groupDomain, meetingID), info)
}

func (g *GroupState) Close(ctx context.Context, meetingID int64) error {
	return g.store.Del(ctx, g.store.idKey(groupDomain, meetingID))
}
