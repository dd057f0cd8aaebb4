package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a named, expiring mutual-exclusion lock.
type Locker interface {
	// TryLock acquires key without waiting. ok is false when another holder
	// owns it. The returned token is needed to release.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// NewLocker returns a Redis-backed locker, or a process-local one when no
// client is available.
func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return NewMemoryLocker()
	}
	return &redisLocker{client: client, script: redis.NewScript(lockReleaseScript)}
}

type redisLocker struct {
	client *redis.Client
	script *redis.Script
}

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *redisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

type memoryLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return "", false, err
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.expires.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = memoryLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
	return nil
}

func checkLockArgs(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return errors.New("lock ttl must be positive")
	}
	return nil
}
