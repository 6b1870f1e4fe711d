package logic

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/multierr"

	"live_meeting/internal/cache"
	"live_meeting/internal/errorx"
	"live_meeting/internal/event"
	"live_meeting/internal/lvb"
	"live_meeting/internal/model"
	"live_meeting/internal/types"
)

// 会议开始前、结束后各允许提前/延后一分钟加入
const joinWindow = time.Minute

// MeetingLogic 会议生命周期 NEW -> ONGOING -> CLOSED
// 会议是否进行中以缓存中的会议状态是否存在为准
type MeetingLogic struct {
	Meetings model.MeetingModel
	State    *cache.MeetingState
	Groups   *cache.GroupState
	Pool     *cache.SharePool
	Queue    *cache.DelayQueue
	Provider lvb.RoomProvider
	Signer   *lvb.Signer
	Events   event.Publisher
	Grace    time.Duration
	Now      func() time.Time
}

// Join 用户加入会议，第一个加入的用户负责开启会议
func (l *MeetingLogic) Join(ctx context.Context, userID, number int64, password string) (*types.JoinResult, error) {
	logger := logx.WithContext(ctx)

	meeting, err := findMeeting(ctx, l.Meetings, number)
	if err != nil {
		return nil, err
	}

	if meeting.Password.Valid {
		if password == "" {
			return nil, errorx.New(errorx.CodeMeetingInput, "need password")
		}
		if meeting.Password.String != password {
			return nil, errorx.New(errorx.CodeInvalidPassword, "password not match")
		}
	}

	now := nowFunc(l.Now)
	if meeting.Status == types.MeetingClosed || meeting.EndAt.Add(joinWindow).Before(now) {
		logger.Infof("meeting %d is over", number)
		return nil, errorx.Newf(errorx.CodeMeetingIsOver, "meeting is over: %s", meeting.EndAt.Format(time.RFC3339))
	}
	if meeting.BeginAt.Add(-joinWindow).After(now) {
		logger.Infof("meeting %d is not start", number)
		return nil, errorx.Newf(errorx.CodeMeetingNotStart, "meeting is not start: %s", meeting.BeginAt.Format(time.RFC3339))
	}

	switch meeting.Status {
	case types.MeetingNew:
		if meeting, err = l.open(ctx, meeting, now); err != nil {
			return nil, err
		}
	case types.MeetingOngoing:
		if err := l.ensureOpen(ctx, meeting, now); err != nil {
			return nil, err
		}
	}

	_, isBreakout, err := l.Groups.Get(ctx, number)
	if err != nil {
		logger.Errorf("failed to get group info of meeting %d: %v", number, err)
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}

	duration := meeting.Duration()
	token, err := l.Signer.Sign(number, userID, duration)
	if err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}
	shareUserToken, err := l.Signer.Sign(number, meeting.ShareUserID.Int64, duration)
	if err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}

	return &types.JoinResult{
		Token:          token,
		AppKey:         l.Signer.AppKey(),
		RoomID:         number,
		ShareUserID:    meeting.ShareUserID.Int64,
		ShareUserToken: shareUserToken,
		IsBreakout:     isBreakout,
	}, nil
}

// open 把 NEW 会议切换为 ONGOING，数据库的条件更新保证只有一个请求胜出
func (l *MeetingLogic) open(ctx context.Context, meeting *types.Meeting, now time.Time) (*types.Meeting, error) {
	logger := logx.WithContext(ctx)
	number := meeting.CallNumber

	shareUserID, err := l.Pool.Generate(ctx)
	if errors.Is(err, cache.ErrShareUserExhausted) {
		return nil, errorx.New(errorx.CodeShareUserExhausted, nil)
	}
	if err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}

	won, err := l.Meetings.MarkOngoing(ctx, number, shareUserID, now)
	if err != nil {
		l.releaseShareUser(ctx, shareUserID)
		logger.Errorf("failed to update meeting %d status: %v", number, err)
		return nil, errorx.Internal(errorx.CodeMeetingDatabase, err)
	}
	if !won {
		// 其他请求已经开启了会议
		l.releaseShareUser(ctx, shareUserID)
		return findMeeting(ctx, l.Meetings, number)
	}

	opened := *meeting
	opened.Status = types.MeetingOngoing
	opened.ActuallyBeginAt.Time, opened.ActuallyBeginAt.Valid = now, true
	opened.ShareUserID.Int64, opened.ShareUserID.Valid = shareUserID, true

	if _, err := l.State.Open(ctx, number, shareUserID, remaining(&opened, now, l.Grace)); err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}
	if err := l.Queue.Push(ctx, number, opened.EndAt.Add(l.Grace)); err != nil {
		return nil, errorx.Internal(errorx.CodeInternal, err)
	}

	logger.Infof("start meeting %d in cache, share user: %d", number, shareUserID)
	l.Events.Publish(ctx, event.Event{MeetingID: number, Kind: event.MeetingOpened, At: now})
	return &opened, nil
}

// ensureOpen 补齐开启过程中途失败时缺失的缓存状态
// 写完缓存后重新读取数据库，会议已被关闭则撤销本次写入
func (l *MeetingLogic) ensureOpen(ctx context.Context, meeting *types.Meeting, now time.Time) error {
	logger := logx.WithContext(ctx)
	number := meeting.CallNumber

	ttl := remaining(meeting, now, l.Grace)
	if ttl <= 0 {
		return nil
	}

	opened, err := l.State.Open(ctx, number, meeting.ShareUserID.Int64, ttl)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !opened {
		return nil
	}

	logger.Infof("restore cache of ongoing meeting %d", number)
	var pooled bool
	if meeting.ShareUserID.Valid {
		if pooled, err = l.Pool.Add(ctx, meeting.ShareUserID.Int64); err != nil {
			return errorx.Internal(errorx.CodeInternal, multierr.Append(err, l.State.Close(ctx, number)))
		}
	}
	if err := l.Queue.Push(ctx, number, meeting.EndAt.Add(l.Grace)); err != nil {
		return errorx.Internal(errorx.CodeInternal, multierr.Append(err, l.rollbackOpen(ctx, meeting, pooled)))
	}

	// 关闭流程先写 CLOSED 再清理缓存，这里晚于它的写入都会被它清理掉
	current, err := findMeeting(ctx, l.Meetings, number)
	if err == nil && current.Status == types.MeetingOngoing {
		return nil
	}
	if rbErr := l.rollbackOpen(ctx, meeting, pooled); rbErr != nil {
		logger.Errorf("failed to rollback cache of meeting %d: %v", number, rbErr)
	}
	if err != nil {
		return err
	}
	logger.Infof("meeting %d closed while restoring cache", number)
	return errorx.Newf(errorx.CodeMeetingIsOver, "meeting is over: %s", meeting.EndAt.Format(time.RFC3339))
}

// rollbackOpen 撤销 ensureOpen 写入的缓存，pooled 为 true 时共享用户 ID 是本次放回池中的
func (l *MeetingLogic) rollbackOpen(ctx context.Context, meeting *types.Meeting, pooled bool) error {
	var err error
	multierr.AppendInto(&err, l.State.Close(ctx, meeting.CallNumber))
	multierr.AppendInto(&err, l.Queue.Pop(ctx, meeting.CallNumber))
	if pooled {
		multierr.AppendInto(&err, l.Pool.Remove(ctx, meeting.ShareUserID.Int64))
	}
	return err
}

// Stop 关闭会议，invoker 为 SystemUser 时不校验所有者
// 视频房间关闭成功后才会写入 CLOSED 并清理缓存；失败时若会议状态仍在，立即再尝试一次
// 返回会议最终是否已关闭
func (l *MeetingLogic) Stop(ctx context.Context, number, invoker int64) (bool, error) {
	logger := logx.WithContext(ctx)

	meeting, err := findMeeting(ctx, l.Meetings, number)
	if err != nil {
		return false, err
	}
	if invoker != SystemUser && meeting.OwnerID != invoker {
		logger.Errorf("user %d has no permission to stop meeting %d", invoker, number)
		return false, errorx.Newf(errorx.CodeNotPermissionStop, "owner ID: %d", meeting.OwnerID)
	}

	closed := meeting.Status == types.MeetingClosed
	if !closed && l.stopRoom(ctx, meeting) {
		if err := l.finish(ctx, meeting, invoker); err != nil {
			return false, err
		}
		closed = true
	}

	open, err := l.State.IsOpen(ctx, number)
	if err != nil {
		return false, errorx.Internal(errorx.CodeInternal, err)
	}
	if !open {
		return closed, nil
	}

	// 视频房间关闭失败，或者上次关闭后没来得及清理缓存
	if !l.stopRoom(ctx, meeting) {
		return false, nil
	}
	if !closed {
		return true, l.finish(ctx, meeting, invoker)
	}
	return true, l.release(ctx, meeting)
}

func (l *MeetingLogic) finish(ctx context.Context, meeting *types.Meeting, invoker int64) error {
	now := nowFunc(l.Now)
	if err := l.Meetings.MarkClosed(ctx, meeting.CallNumber, invoker, now); err != nil {
		logx.WithContext(ctx).Errorf("failed to update meeting %d status: %v", meeting.CallNumber, err)
		return errorx.Internal(errorx.CodeMeetingDatabase, err)
	}
	l.Events.Publish(ctx, event.Event{MeetingID: meeting.CallNumber, Kind: event.MeetingClosed, UserID: invoker, At: now})
	return l.release(ctx, meeting)
}

// release 清理会议相关的全部缓存
func (l *MeetingLogic) release(ctx context.Context, meeting *types.Meeting) error {
	number := meeting.CallNumber

	var err error
	multierr.AppendInto(&err, l.State.Close(ctx, number))
	multierr.AppendInto(&err, l.Queue.Pop(ctx, number))
	if meeting.ShareUserID.Valid {
		multierr.AppendInto(&err, l.Pool.Remove(ctx, meeting.ShareUserID.Int64))
	}
	multierr.AppendInto(&err, l.Groups.Close(ctx, number))
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}

	logx.WithContext(ctx).Infof("stop meeting %d in cache", number)
	return nil
}

func (l *MeetingLogic) stopRoom(ctx context.Context, meeting *types.Meeting) bool {
	logger := logx.WithContext(ctx)

	token, err := l.Signer.Sign(meeting.CallNumber, meeting.OwnerID, meeting.Duration())
	if err != nil {
		logger.Errorf("failed to sign room token of meeting %d: %v", meeting.CallNumber, err)
		return false
	}

	ok, roomID, err := l.Provider.StopRoom(ctx, token)
	if err != nil {
		logger.Errorf("call lvb stop error, meeting %d: %v", meeting.CallNumber, err)
		return false
	}
	logger.Infof("success: %t, close lvb room: %d of meeting %d", ok, roomID, meeting.CallNumber)
	return ok
}

func (l *MeetingLogic) releaseShareUser(ctx context.Context, id int64) {
	if err := l.Pool.Remove(ctx, id); err != nil {
		logx.WithContext(ctx).Errorf("failed to release share user %d: %v", id, err)
	}
}

// StartShare 会议中同一时间只允许一个人共享
func (l *MeetingLogic) StartShare(ctx context.Context, number, userID int64) error {
	presenter, ok, err := l.State.Presenter(ctx, number)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !ok {
		return errorx.New(errorx.CodeMeetingNotFound, "not found ongoing meeting")
	}
	if presenter > 0 && presenter != userID {
		return errorx.Newf(errorx.CodeIsShared, "user %d is sharing", presenter)
	}

	updated, err := l.State.SetPresenter(ctx, number, userID)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !updated {
		return errorx.New(errorx.CodeMeetingNotFound, "not found ongoing meeting")
	}

	logx.WithContext(ctx).Infof("user %d start share in meeting %d", userID, number)
	return nil
}

func (l *MeetingLogic) StopShare(ctx context.Context, number, userID int64) error {
	presenter, ok, err := l.State.Presenter(ctx, number)
	if err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}
	if !ok || presenter != userID {
		return errorx.Newf(errorx.CodeNotShare, "sharing user is %d", presenter)
	}

	if _, err := l.State.SetPresenter(ctx, number, 0); err != nil {
		return errorx.Internal(errorx.CodeInternal, err)
	}

	logx.WithContext(ctx).Infof("user %d stop share in meeting %d", userID, number)
	return nil
}
