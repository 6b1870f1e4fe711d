package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"live_meeting/internal/types"
)

var ErrNotFound = sqlx.ErrNotFound

const meetingRows = "`call_number`,`name`,`status`,`owner_id`,`begin_at`,`end_at`,`actually_begin_at`," +
	"`actually_end_at`,`closed_by_id`,`password`,`share_user_id`"

// MeetingModel 会议表的读写，只涉及生命周期关心的字段
type MeetingModel interface {
	FindOne(ctx context.Context, callNumber int64) (*types.Meeting, error)
	// MarkOngoing 仅当会议仍为 NEW 时更新为 ONGOING，返回是否由本次调用完成切换
	MarkOngoing(ctx context.Context, callNumber, shareUserID int64, at time.Time) (bool, error)
	// MarkClosed closedBy 为 0 表示系统关闭
	MarkClosed(ctx context.Context, callNumber, closedBy int64, at time.Time) error
}

type defaultMeetingModel struct {
	conn  sqlx.SqlConn
	table string
}

func NewMeetingModel(conn sqlx.SqlConn) MeetingModel {
	return &defaultMeetingModel{conn: conn, table: "`meeting`"}
}

func (m *defaultMeetingModel) FindOne(ctx context.Context, callNumber int64) (*types.Meeting, error) {
	query := fmt.Sprintf("select %s from %s where `call_number` = ? and `deleted` is null limit 1", meetingRows, m.table)
	var resp types.Meeting
	err := m.conn.QueryRowCtx(ctx, &resp, query, callNumber)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultMeetingModel) MarkOngoing(ctx context.Context, callNumber, shareUserID int64, at time.Time) (bool, error) {
	query := fmt.Sprintf("update %s set `status` = ?, `actually_begin_at` = ?, `share_user_id` = ? "+
		"where `call_number` = ? and `status` = ? and `deleted` is null", m.table)
	res, err := m.conn.ExecCtx(ctx, query, types.MeetingOngoing, at, shareUserID, callNumber, types.MeetingNew)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *defaultMeetingModel) MarkClosed(ctx context.Context, callNumber, closedBy int64, at time.Time) error {
	query := fmt.Sprintf("update %s set `status` = ?, `closed_by_id` = ?, `actually_end_at` = ? "+
		"where `call_number` = ? and `status` <> ?", m.table)
	closer := sql.NullInt64{Int64: closedBy, Valid: closedBy != 0}
	_, err := m.conn.ExecCtx(ctx, query, types.MeetingClosed, closer, at, callNumber, types.MeetingClosed)
	return err
}
