package cache

import (
	"context"
	"strconv"
	"time"
)

const (
	shareUserField = "share_user"
	presenterField = "sharing_user"
)

// MeetingState 会议在线状态，记录存在即表示会议进行中
type MeetingState struct {
	store *Store
}

func NewMeetingState(store *Store) *MeetingState {
	return &MeetingState{store: store}
}

// Open 创建会议状态，记录分配给会议的共享用户 ID，当前共享者初始为 0；已存在时返回 false
func (m *MeetingState) Open(ctx context.Context, meetingID, shareUserID int64, ttl time.Duration) (bool, error) {
	return m.store.HOpen(ctx, m.store.idKey(meetingDomain, meetingID), ttl,
		shareUserField, shareUserID, presenterField, 0)
}

// ShareUser 返回会议开启时分配的共享用户 ID
func (m *MeetingState) ShareUser(ctx context.Context, meetingID int64) (int64, bool, error) {
	return m.intField(ctx, meetingID, shareUserField)
}

// Presenter 返回当前共享用户，0 表示无人共享；会议未开启时 ok=false
func (m *MeetingState) Presenter(ctx context.Context, meetingID int64) (int64, bool, error) {
	return m.intField(ctx, meetingID, presenterField)
}

func (m *MeetingState) intField(ctx context.Context, meetingID int64, field string) (int64, bool, error) {
	val, ok, err := m.store.HGet(ctx, m.store.idKey(meetingDomain, meetingID), field)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// SetPresenter 覆盖共享用户，会议未开启时返回 false；传 0 表示停止共享
func (m *MeetingState) SetPresenter(ctx context.Context, meetingID, userID int64) (bool, error) {
	return m.store.HSetXX(ctx, m.store.idKey(meetingDomain, meetingID), presenterField, userID)
}

func (m *MeetingState) IsOpen(ctx context.Context, meetingID int64) (bool, error) {
	return m.store.Exists(ctx, m.store.idKey(meetingDomain, meetingID))
}

func (m *MeetingState) Close(ctx context.Context, meetingID int64) error {
	return m.store.Del(ctx, m.store.idKey(meetingDomain, meetingID))
}
