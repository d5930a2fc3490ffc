package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"mailboxapi/internal/util"
)

// Locker guards a sweep so that only one runs at a time. Acquire reports
// false when another holder owns the lock. The returned release func is
// safe to call once.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalLocker serialises sweeps inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) Acquire(context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every process that sweeps the
// same database. The TTL bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(addr, password, key string, ttl time.Duration) (*RedisLocker, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "mailbox:retention:lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		key:    key,
		ttl:    ttl,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), bool, error) {
	token := util.NewID()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
		})
	}, true, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
