package event

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/zeromicro/go-zero/core/jsonx"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	MeetingOpened = "opened"
	MeetingClosed = "closed"
	PollStarted   = "poll.started"
	PollStopped   = "poll.stopped"
	GroupStarted  = "group.started"
	GroupStopped  = "group.stopped"
)

// Event 会议状态变化通知，subject 为 meeting.<id>.<kind>
type Event struct {
	MeetingID int64     `json:"meeting_id"`
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id,omitempty"`
	PollID    int64     `json:"poll_id,omitempty"`
	Round     int       `json:"round,omitempty"`
	At        time.Time `json:"at"`
}

func Subject(meetingID int64, kind string) string {
	return fmt.Sprintf("meeting.%d.%s", meetingID, kind)
}

// Publisher 通知是尽力而为的，发布失败只记录日志，不影响会议流程
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type noop struct{}

func (noop) Publish(context.Context, Event) {}

func Noop() Publisher {
	return noop{}
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(conn *nats.Conn) *NatsPublisher {
	return &NatsPublisher{conn: conn}
}

// Connect 连接 NATS，断线后无限重连
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) {
	data, err := jsonx.Marshal(e)
	if err != nil {
		logx.WithContext(ctx).Errorf("marshal event %s of meeting %d: %v", e.Kind, e.MeetingID, err)
		return
	}
	if err := p.conn.Publish(Subject(e.MeetingID, e.Kind), data); err != nil {
		logx.WithContext(ctx).Errorf("publish event %s of meeting %d: %v", e.Kind, e.MeetingID, err)
	}
}
