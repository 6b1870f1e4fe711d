package svc

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"live_meeting/internal/cache"
	"live_meeting/internal/config"
	"live_meeting/internal/event"
	"live_meeting/internal/logic"
	"live_meeting/internal/lvb"
	"live_meeting/internal/metrics"
	"live_meeting/internal/model"
	"live_meeting/internal/worker"
)

type ServiceContext struct {
	Config       config.Config
	RedisClient  redis.UniversalClient
	Metrics      *metrics.Metrics
	MeetingModel model.MeetingModel
	PollModel    model.PollModel
	Events       event.Publisher
	MeetingLogic *logic.MeetingLogic
	GroupLogic   *logic.GroupLogic
	PollLogic    *logic.PollLogic
	Worker       *worker.Worker
}

// NewServiceContext 所有组件在这里显式组装，不依赖全局状态
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	conn := sqlx.NewMysql(c.Mysql.DataSource)
	return newServiceContext(c, conn, prometheus.DefaultRegisterer)
}

func newServiceContext(c config.Config, conn sqlx.SqlConn, reg prometheus.Registerer) (*ServiceContext, error) {
	redisClient := cache.NewClient(c.Redis.Addrs, c.Redis.Password, c.Redis.DB)
	store := cache.NewStore(redisClient, c.Redis.Prefix)
	m := metrics.NewMetrics(reg)
	locker := cache.NewLocker(store, m)

	events, err := newPublisher(c.Nats)
	if err != nil {
		return nil, err
	}

	meetingModel := model.NewMeetingModel(conn)
	pollModel := model.NewPollModel(conn)
	groups := cache.NewGroupState(store, locker, c.Meeting.LockAcquireTimeout, c.Meeting.LockTimeout)
	queue := cache.NewDelayQueue(store)
	now := time.Now

	meetingLogic := &logic.MeetingLogic{
		Meetings: meetingModel,
		State:    cache.NewMeetingState(store),
		Groups:   groups,
		Pool:     cache.NewSharePool(store, c.Meeting.ShareUserAttempts),
		Queue:    queue,
		Provider: lvb.NewClient(c.Lvb.Host, c.Lvb.AppKey),
		Signer:   lvb.NewSigner(c.Lvb.AppKey, c.Lvb.AppSecret),
		Events:   events,
		Grace:    c.Meeting.Grace,
		Now:      now,
	}
	groupLogic := &logic.GroupLogic{
		Meetings: meetingModel,
		Groups:   groups,
		Events:   events,
		Grace:    c.Meeting.Grace,
		Now:      now,
	}
	pollLogic := &logic.PollLogic{
		Polls:          pollModel,
		Meetings:       meetingModel,
		Locker:         locker,
		Events:         events,
		AcquireTimeout: c.Meeting.LockAcquireTimeout,
		LockTimeout:    c.Meeting.LockTimeout,
		Now:            now,
	}

	return &ServiceContext{
		Config:       c,
		RedisClient:  redisClient,
		Metrics:      m,
		MeetingModel: meetingModel,
		PollModel:    pollModel,
		Events:       events,
		MeetingLogic: meetingLogic,
		GroupLogic:   groupLogic,
		PollLogic:    pollLogic,
		Worker:       worker.New(queue, meetingLogic, m, c.Meeting.WorkerInterval),
	}, nil
}

// newPublisher 未配置 NATS 时不发送通知
func newPublisher(c config.NatsConf) (event.Publisher, error) {
	if c.URL == "" {
		logx.Info("nats url not set, lifecycle events disabled")
		return event.Noop(), nil
	}

	conn, err := event.Connect(c.URL, c.Name)
	if err != nil {
		return nil, err
	}
	return event.NewNatsPublisher(conn), nil
}
