package logic

import (
	"context"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"live_meeting/internal/cache"
	"live_meeting/internal/errorx"
	"live_meeting/internal/event"
	"live_meeting/internal/model"
	"live_meeting/internal/types"
)

// GroupLogic 分组讨论
// 开启分组在会议级锁内完成；移动成员是读-改-写，并发移动时后写者覆盖先写者
type GroupLogic struct {
	Meetings model.MeetingModel
	Groups   *cache.GroupState
	Events   event.Publisher
	Grace    time.Duration
	Now      func() time.Time
}

func (l *GroupLogic) ongoingMeeting(ctx context.Context, number, userID int64) (*types.Meeting, error) {
	meeting, err := findMeeting(ctx, l.Meetings, number)
	if err != nil {
		return nil, err
	}
	if meeting.Status != types.MeetingOngoing {
		return nil, errorx.Newf(errorx.CodeMeetingNotStart, "meeting not start: %d", number)
	}
	if meeting.OwnerID != userID {
		return nil, errorx.New(errorx.CodeNoPermission, "not the owner of this meeting")
	}
	return meeting, nil
}

func (l *GroupLogic) Start(ctx context.Context, userID, number int64, groups []types.Group) error {
	meeting, err := l.ongoingMeeting(ctx, number, userID)
	if err != nil {
		return err
	}

	now := nowFunc(l.Now)
	ttl := remaining(meeting, now, l.Grace)
	if ttl <= 0 {
		ttl = l.Grace
	}

	opened, err := l.Groups.Open(ctx, number, groups, ttl)
	if err != nil {
		logx.WithContext(ctx).Errorf("failed to open group of meeting %d: %v", number, err)
		return internal(errorx.CodeInternal, err)
	}
	if !opened {
		return errorx.Newf(errorx.CodeGroupAlreadyStart, "group already start for meeting: %d", number)
	}

	l.Events.Publish(ctx, event.Event{MeetingID: number, Kind: event.GroupStarted, UserID: userID, At: now})
	return nil
}

func (l *GroupLogic) Stop(ctx context.Context, userID, number int64) error {
	if _, err := l.ongoingMeeting(ctx, number, userID); err != nil {
		return err
	}
	if err := l.Groups.Close(ctx, number); err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}

	l.Events.Publish(ctx, event.Event{MeetingID: number, Kind: event.GroupStopped, UserID: userID, At: nowFunc(l.Now)})
	return nil
}

// MoveMembers 把 members 从 from 组移动到 to 组
func (l *GroupLogic) MoveMembers(ctx context.Context, number int64, members []int64, from, to int64) error {
	meeting, err := findMeeting(ctx, l.Meetings, number)
	if err != nil {
		return err
	}
	if meeting.Status != types.MeetingOngoing {
		return errorx.New(errorx.CodeMeetingNotFound, "invalid meeting")
	}

	groups, ok, err := l.Groups.Get(ctx, number)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !ok {
		return errorx.Newf(errorx.CodeGroupNotFound, "not found group info for meeting: %d", number)
	}

	moveMembers(groups, members, from, to)

	updated, err := l.Groups.Update(ctx, number, groups)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !updated {
		// 读取之后会议被关闭了
		return errorx.New(errorx.CodeMeetingNotFound, "invalid meeting")
	}
	return nil
}

// Detail 未开启分组时返回 nil
func (l *GroupLogic) Detail(ctx context.Context, number int64) ([]types.Group, error) {
	groups, _, err := l.Groups.Get(ctx, number)
	if err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}
	return groups, nil
}

func moveMembers(groups []types.Group, members []int64, from, to int64) {
	if from == to {
		return
	}

	moving := mapset.NewThreadUnsafeSet(members...)
	for i := range groups {
		users := mapset.NewThreadUnsafeSet(groups[i].Users...)
		switch groups[i].ID {
		case from:
			groups[i].Users = sorted(users.Difference(moving))
		case to:
			groups[i].Users = sorted(users.Union(moving))
		}
	}
}

func sorted(s mapset.Set[int64]) []int64 {
	users := s.ToSlice()
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
