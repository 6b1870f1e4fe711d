package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	meetingDomain    = "meeting"
	groupDomain      = "meeting:group"
	shareUserDomain  = "share_user"
	delayQueueDomain = "delay_queue"
	lockDomain       = "lock"
)

var (
	// KEYS[1] 当前值等于 ARGV[1] 时才删除
	compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

	// KEYS[1] 不存在时写入 ARGV[2..] 中的字段/值，并设置毫秒过期时间 ARGV[1]
	openHashScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 1 then
	return 0
end
redis.call("hset", KEYS[1], unpack(ARGV, 2))
redis.call("pexpire", KEYS[1], ARGV[1])
return 1`)

	// KEYS[1] 存在时才覆盖 hash 字段，不改变过期时间
	setHashIfExistsScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 0 then
	return 0
end
redis.call("hset", KEYS[1], ARGV[1], ARGV[2])
return 1`)
)

// Store 是对外部 KV 服务的一层薄封装，所有组件通过构造函数注入同一个 Store
// 只保证单 key 原子性，没有跨 key 事务
type Store struct {
	rds    redis.UniversalClient
	prefix string
}

func NewStore(rds redis.UniversalClient, prefix string) *Store {
	return &Store{rds: rds, prefix: prefix}
}

// NewClient 按地址数量返回单机或集群客户端
func NewClient(addrs []string, password string, db int) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
		DB:       db,
	})
}

func (s *Store) Client() redis.UniversalClient {
	return s.rds
}

// Key 生成 <prefix>:<domain>[:<id>]
func (s *Store) Key(domain string, ids ...string) string {
	parts := make([]string, 0, len(ids)+2)
	parts = append(parts, s.prefix, domain)
	parts = append(parts, ids...)
	return strings.Join(parts, ":")
}

func (s *Store) idKey(domain string, id int64) string {
	return s.Key(domain, strconv.FormatInt(id, 10))
}

func (s *Store) SetNX(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	ok, err := s.rds.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, wrap("setnx", key, err)
	}
	return ok, nil
}

// SetXX 仅在 key 已存在时覆盖，保留原有过期时间
func (s *Store) SetXX(ctx context.Context, key string, val any) (bool, error) {
	ok, err := s.rds.SetXX(ctx, key, val, redis.KeepTTL).Result()
	if err != nil {
		return false, wrap("setxx", key, err)
	}
	return ok, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rds.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get", key, err)
	}
	return val, true, nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.rds.Del(ctx, key).Err(); err != nil {
		return wrap("del", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rds.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap("exists", key, err)
	}
	return n > 0, nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.rds.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("hget", key, err)
	}
	return val, true, nil
}

// HOpen 原子地创建 hash 并设置过期时间，key 已存在时返回 false
func (s *Store) HOpen(ctx context.Context, key string, ttl time.Duration, fieldValues ...any) (bool, error) {
	args := append([]any{ttl.Milliseconds()}, fieldValues...)
	n, err := openHashScript.Run(ctx, s.rds, []string{key}, args...).Int()
	if err != nil {
		return false, wrap("hopen", key, err)
	}
	return n == 1, nil
}

// HSetXX 仅在 key 已存在时覆盖字段
func (s *Store) HSetXX(ctx context.Context, key, field string, val any) (bool, error) {
	n, err := setHashIfExistsScript.Run(ctx, s.rds, []string{key}, field, val).Int()
	if err != nil {
		return false, wrap("hsetxx", key, err)
	}
	return n == 1, nil
}

// CompareAndDelete 当前值等于 val 时删除 key
func (s *Store) CompareAndDelete(ctx context.Context, key, val string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, s.rds, []string{key}, val).Int()
	if err != nil {
		return false, wrap("cad", key, err)
	}
	return n == 1, nil
}

func (s *Store) ZAdd(ctx context.Context, key string, member string, score float64) error {
	if err := s.rds.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err(); err != nil {
		return wrap("zadd", key, err)
	}
	return nil
}

func (s *Store) ZRem(ctx context.Context, key string, member string) error {
	if err := s.rds.ZRem(ctx, key, member).Err(); err != nil {
		return wrap("zrem", key, err)
	}
	return nil
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, min, max int64) ([]string, error) {
	vals, err := s.rds.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(min, 10),
		Max: strconv.FormatInt(max, 10),
	}).Result()
	if err != nil {
		return nil, wrap("zrangebyscore", key, err)
	}
	return vals, nil
}

func (s *Store) SAdd(ctx context.Context, key string, member string) (bool, error) {
	n, err := s.rds.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, wrap("sadd", key, err)
	}
	return n == 1, nil
}

func (s *Store) SRem(ctx context.Context, key string, member string) error {
	if err := s.rds.SRem(ctx, key, member).Err(); err != nil {
		return wrap("srem", key, err)
	}
	return nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	ok, err := s.rds.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, wrap("sismember", key, err)
	}
	return ok, nil
}

func wrap(op, key string, err error) error {
	return fmt.Errorf("cache: %s %s: %w", op, key, err)
}
