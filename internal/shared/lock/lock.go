package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLocked is returned by Acquire when another holder owns the key.
var ErrLocked = errors.New("lock already held")

// Locker hands out exclusive locks by key. ttl is a lease: it is renewed in
// the background until release is called, so it only frees the key when the
// holder dies. The returned release function is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

const redisOpTimeout = 5 * time.Second

// renewInterval is how often a lease of the given ttl is extended.
func renewInterval(ttl time.Duration) time.Duration {
	return ttl / 3
}

// keepAlive calls extend every renewInterval(ttl) until stop is closed or
// extend reports that the lease belongs to someone else.
func keepAlive(stop <-chan struct{}, ttl time.Duration, extend func() (bool, error), onErr func(error)) {
	ticker := time.NewTicker(renewInterval(ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := extend()
			if err != nil {
				onErr(err)
				continue
			}
			if !held {
				onErr(ErrLost)
				return
			}
		}
	}
}

// ErrLost is reported when a lease could not be renewed because it expired
// and another holder took the key.
var ErrLost = errors.New("lock lease lost")

// RedisLocker 基于Redis SET NX PX 的分布式锁, 持有期间自动续期
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, prefix string, log *zap.Logger) *RedisLocker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, log: log.Named("lock")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	fullKey := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	if ttl > 0 {
		go keepAlive(stop, ttl, func() (bool, error) {
			ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
			defer cancel()
			n, err := extendScript.Run(ctx, l.rdb, []string{fullKey}, token, ttl.Milliseconds()).Int64()
			return n == 1, err
		}, func(err error) {
			l.log.Warn("lock renewal failed", zap.String("key", fullKey), zap.Error(err))
		})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{fullKey}, token).Err(); err != nil {
				l.log.Warn("lock release failed, key expires with its ttl", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}, nil
}

// LocalLocker is the in-process Locker used when redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localHold
	Now  func() time.Time
}

type localHold struct {
	token     string
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), Now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	if h, ok := l.held[key]; ok && (h.expiresAt.IsZero() || now.Before(h.expiresAt)) {
		return nil, ErrLocked
	}
	h := localHold{token: uuid.New().String()}
	if ttl > 0 {
		h.expiresAt = now.Add(ttl)
	}
	l.held[key] = h

	stop := make(chan struct{})
	if ttl > 0 {
		go keepAlive(stop, ttl, func() (bool, error) {
			return l.extend(key, h.token, ttl), nil
		}, func(error) {})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.token == h.token {
				delete(l.held, key)
			}
		})
	}, nil
}

func (l *LocalLocker) extend(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	if !ok || cur.token != token {
		return false
	}
	cur.expiresAt = l.Now().Add(ttl)
	l.held[key] = cur
	return true
}
