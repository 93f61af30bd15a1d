package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindnote/counsel/internal/pkg/errs"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockWait = 3 * time.Second
	lockPollEvery   = 50 * time.Millisecond
	lockKeyPrefix   = "counsel:turn:"
)

// ReleaseFunc gives the lock back. Calling it more than once is harmless.
type ReleaseFunc func()

// RedisTurnLocker serializes chat turns per session across instances.
// The TTL bounds how long a crashed holder can block a session.
type RedisTurnLocker struct {
	rdb  *redis.Client
	ttl  time.Duration
	wait time.Duration
}

func NewRedisTurnLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisTurnLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &RedisTurnLocker{rdb: rdb, ttl: ttl, wait: wait}
}

// delete only if we still own the key
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisTurnLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	k := lockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = unlockScript.Run(ctx, l.rdb, []string{k}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, errs.ErrTurnInProgress
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollEvery):
		}
	}
}

// LocalTurnLocker is the single-instance fallback used when no redis
// address is configured.
type LocalTurnLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalTurnLocker(wait time.Duration) *LocalTurnLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &LocalTurnLocker{wait: wait, slots: make(map[string]*slot)}
}

func (l *LocalTurnLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-timer.C:
		l.unref(key, s)
		return nil, errs.ErrTurnInProgress
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalTurnLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
