package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"live_meeting/internal/types"
)

const (
	pollRows       = "`id`,`meeting_id`,`title`,`round`,`status`,`is_anonymous`,`share`"
	pollResultRows = "`poll_id`,`question_id`,`option_id`,`round`,`voter_id`"
)

type PollModel interface {
	FindOne(ctx context.Context, id int64) (*types.Poll, error)
	FindByMeeting(ctx context.Context, meetingID int64) ([]*types.Poll, error)
	// StartRound 轮次加一、状态置为 ONGOING、关闭结果分享，并返回更新后的记录
	StartRound(ctx context.Context, id int64) (*types.Poll, error)
	// Finish 仅当投票为 ONGOING 时置为 DONE
	Finish(ctx context.Context, id int64) (bool, error)
	InsertResults(ctx context.Context, results []*types.PollResult) error
	// FindResults 返回指定轮次的全部投票记录，voterID 大于 0 时只返回该用户的记录
	FindResults(ctx context.Context, pollID int64, round int, voterID int64) ([]*types.PollResult, error)
	// SetShare 值未变化时 MySQL 返回影响行数 0，因此不检查影响行数
	SetShare(ctx context.Context, id int64, share bool) error
	// Delete 软删除，只允许删除 NEW 状态的投票
	Delete(ctx context.Context, id int64) (bool, error)
}

type defaultPollModel struct {
	conn        sqlx.SqlConn
	table       string
	resultTable string
}

func NewPollModel(conn sqlx.SqlConn) PollModel {
	return &defaultPollModel{conn: conn, table: "`poll`", resultTable: "`poll_result`"}
}

func (m *defaultPollModel) FindOne(ctx context.Context, id int64) (*types.Poll, error) {
	query := fmt.Sprintf("select %s from %s where `id` = ? and `deleted` is null limit 1", pollRows, m.table)
	var resp types.Poll
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultPollModel) FindByMeeting(ctx context.Context, meetingID int64) ([]*types.Poll, error) {
	query := fmt.Sprintf("select %s from %s where `meeting_id` = ? and `deleted` is null", pollRows, m.table)
	var resp []*types.Poll
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, meetingID); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultPollModel) StartRound(ctx context.Context, id int64) (*types.Poll, error) {
	query := fmt.Sprintf("update %s set `status` = ?, `share` = ?, `round` = `round` + 1 "+
		"where `id` = ? and `deleted` is null", m.table)
	res, err := m.conn.ExecCtx(ctx, query, types.PollOngoing, false, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return m.FindOne(ctx, id)
}

func (m *defaultPollModel) Finish(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf("update %s set `status` = ? where `id` = ? and `status` = ? and `deleted` is null", m.table)
	res, err := m.conn.ExecCtx(ctx, query, types.PollDone, id, types.PollOngoing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *defaultPollModel) InsertResults(ctx context.Context, results []*types.PollResult) error {
	if len(results) == 0 {
		return nil
	}
	query := fmt.Sprintf("insert into %s (%s) values (?, ?, ?, ?, ?)", m.resultTable, pollResultRows)
	return m.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, r := range results {
			if _, err := session.ExecCtx(ctx, query, r.PollID, r.QuestionID, r.OptionID, r.Round, r.VoterID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *defaultPollModel) FindResults(ctx context.Context, pollID int64, round int, voterID int64) ([]*types.PollResult, error) {
	query := fmt.Sprintf("select %s from %s where `poll_id` = ? and `round` = ?", pollResultRows, m.resultTable)
	args := []any{pollID, round}
	if voterID > 0 {
		query += " and `voter_id` = ?"
		args = append(args, voterID)
	}
	query += " order by `question_id`, `option_id`, `voter_id`"

	var resp []*types.PollResult
	if err := m.conn.QueryRowsCtx(ctx, &resp, query, args...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *defaultPollModel) SetShare(ctx context.Context, id int64, share bool) error {
	query := fmt.Sprintf("update %s set `share` = ? where `id` = ? and `deleted` is null", m.table)
	_, err := m.conn.ExecCtx(ctx, query, share, id)
	return err
}

func (m *defaultPollModel) Delete(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf("update %s set `deleted` = ? where `id` = ? and `status` = ? and `deleted` is null", m.table)
	res, err := m.conn.ExecCtx(ctx, query, time.Now().UTC(), id, types.PollNew)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
