package logic

import (
	"context"
	"errors"
	"time"

	"live_meeting/internal/errorx"
	"live_meeting/internal/model"
	"live_meeting/internal/types"
)

// SystemUser 表示由后台任务发起的操作，跳过所有者校验
const SystemUser int64 = 0

func nowFunc(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// internal 业务错误原样返回，其余错误包装为带 code 的内部错误
func internal(code errorx.Code, err error) error {
	var ce *errorx.CodeError
	if errors.As(err, &ce) {
		return err
	}
	return errorx.Internal(code, err)
}

func findMeeting(ctx context.Context, meetings model.MeetingModel, number int64) (*types.Meeting, error) {
	meeting, err := meetings.FindOne(ctx, number)
	if errors.Is(err, model.ErrNotFound) {
		return nil, errorx.Newf(errorx.CodeMeetingNotFound, "meeting number: %d", number)
	}
	if err != nil {
		return nil, errorx.Internal(errorx.CodeMeetingDatabase, err)
	}
	return meeting, nil
}

// remaining 距会议计划结束的时间加上宽限期
func remaining(m *types.Meeting, now time.Time, grace time.Duration) time.Duration {
	return m.EndAt.Sub(now) + grace
}
