package config

import (
	"time"

	"github.com/zeromicro/go-zero/rest"
)

type Config struct {
	rest.RestConf
	Redis   RedisConf
	Mysql   MysqlConf
	Lvb     LvbConf
	Nats    NatsConf `json:",optional"`
	Meeting MeetingConf
}

// RedisConf 多个地址时自动使用集群客户端
type RedisConf struct {
	Addrs    []string
	Password string `json:",optional"`
	DB       int    `json:",default=0"`
	Prefix   string `json:",default=0"`
}

type MysqlConf struct {
	DataSource string
}

type LvbConf struct {
	Host      string `json:",optional"`
	AppKey    string
	AppSecret string
}

type NatsConf struct {
	URL  string `json:",optional"`
	Name string `json:",default=live-meeting"`
}

// MeetingConf 会议生命周期相关的时间参数
type MeetingConf struct {
	Grace              time.Duration `json:",default=60s"`
	WorkerInterval     time.Duration `json:",default=20s"`
	LockAcquireTimeout time.Duration `json:",default=10s"`
	LockTimeout        time.Duration `json:",default=10s"`
	ShareUserAttempts  int           `json:",default=16"`
}
