package cache

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

const (
	shareUserMin = 100000000
	shareUserMax = 999999999

	defaultShareUserAttempts = 16
)

var ErrShareUserExhausted = errors.New("cache: share user id pool exhausted")

// SharePool 为每个进行中的会议分配一个不重复的共享用户 ID
type SharePool struct {
	store    *Store
	attempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSharePool(store *Store, attempts int) *SharePool {
	if attempts <= 0 {
		attempts = defaultShareUserAttempts
	}
	return &SharePool{
		store:    store,
		attempts: attempts,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *SharePool) draw() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return shareUserMin + p.rnd.Int63n(shareUserMax-shareUserMin+1)
}

// Generate 随机抽取 ID 并加入池中，冲突时重试，超过次数返回 ErrShareUserExhausted
func (p *SharePool) Generate(ctx context.Context) (int64, error) {
	key := p.store.Key(shareUserDomain)
	for i := 0; i < p.attempts; i++ {
		id := p.draw()
		added, err := p.store.SAdd(ctx, key, strconv.FormatInt(id, 10))
		if err != nil {
			return 0, err
		}
		if added {
			return id, nil
		}
	}
	return 0, ErrShareUserExhausted
}

// Add 把已分配的 ID 放回池中，ID 已存在时返回 false
func (p *SharePool) Add(ctx context.Context, id int64) (bool, error) {
	return p.store.SAdd(ctx, p.store.Key(shareUserDomain), strconv.FormatInt(id, 10))
}

func (p *SharePool) Remove(ctx context.Context, id int64) error {
	return p.store.SRem(ctx, p.store.Key(shareUserDomain), strconv.FormatInt(id, 10))
}

func (p *SharePool) Contains(ctx context.Context, id int64) (bool, error) {
	return p.store.SIsMember(ctx, p.store.Key(shareUserDomain), strconv.FormatInt(id, 10))
}
