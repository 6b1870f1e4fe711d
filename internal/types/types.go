package types

import (
	"database/sql"
	"time"
)

// MeetingStatus 会议状态，只能单向流转 NEW -> ONGOING -> CLOSED
type MeetingStatus int

const (
	MeetingNew MeetingStatus = iota
	MeetingOngoing
	MeetingClosed
)

// PollStatus 投票状态
type PollStatus int

const (
	PollNew PollStatus = iota
	PollOngoing
	PollDone
)

// Meeting 表示会议记录，主键为会议号
type Meeting struct {
	CallNumber      int64          `db:"call_number"`
	Name            string         `db:"name"`
	Status          MeetingStatus  `db:"status"`
	OwnerID         int64          `db:"owner_id"`
	BeginAt         time.Time      `db:"begin_at"`
	EndAt           time.Time      `db:"end_at"`
	ActuallyBeginAt sql.NullTime   `db:"actually_begin_at"`
	ActuallyEndAt   sql.NullTime   `db:"actually_end_at"`
	ClosedBy        sql.NullInt64  `db:"closed_by_id"`
	Password        sql.NullString `db:"password"`
	ShareUserID     sql.NullInt64  `db:"share_user_id"`
}

// Duration 会议计划时长
func (m *Meeting) Duration() time.Duration {
	return m.EndAt.Sub(m.BeginAt)
}

// Poll 表示会议中的一个投票，Round 每次开始投票时加一
type Poll struct {
	ID          int64      `db:"id"`
	MeetingID   int64      `db:"meeting_id"`
	Title       string     `db:"title"`
	Round       int        `db:"round"`
	Status      PollStatus `db:"status"`
	IsAnonymous bool       `db:"is_anonymous"`
	Share       bool       `db:"share"`
}

// PollResult 一条投票记录，只属于提交时的轮次
type PollResult struct {
	PollID     int64 `db:"poll_id"`
	QuestionID int64 `db:"question_id"`
	OptionID   int64 `db:"option_id"`
	Round      int   `db:"round"`
	VoterID    int64 `db:"voter_id"`
}

// OptionResult 一个选项在当前轮次的得票，匿名投票不返回投票人
type OptionResult struct {
	QuestionID int64   `json:"question_id"`
	OptionID   int64   `json:"option_id"`
	Count      int     `json:"count"`
	Voters     []int64 `json:"voters,omitempty"`
}

// PollSummary 投票当前轮次的统计
type PollSummary struct {
	PollID      int64          `json:"id"`
	Title       string         `json:"title"`
	Round       int            `json:"round"`
	Status      PollStatus     `json:"status"`
	IsAnonymous bool           `json:"is_anonymous"`
	VoterNum    int            `json:"voter_num"`
	Options     []OptionResult `json:"options"`
}

// Answer 用户对一个问题选择的选项
type Answer struct {
	QuestionID int64   `json:"id"`
	OptionIDs  []int64 `json:"options"`
}

// Group 分组讨论中的一个小组
type Group struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Users []int64 `json:"users"`
}

// JoinResult 加入会议后返回给客户端的信息
type JoinResult struct {
	Token          string `json:"token"`
	AppKey         string `json:"app_key"`
	RoomID         int64  `json:"room_id"`
	ShareUserID    int64  `json:"share_user_id"`
	ShareUserToken string `json:"share_user_token"`
	IsBreakout     bool   `json:"is_breakout"`
}
