// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"telegram-sticker-cloner/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ repository.Locker = (*RedisLocker)(nil)

var ErrLockBusy = errors.New("lock is held by another process")

type RedisLocker struct {
	cli   *redis.Client
	tries int
	wait  time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, tries: 5, wait: 50 * time.Millisecond}
}

// TryLock sets key to a fresh token if it is free, polling a few times before
// giving up with ErrLockBusy.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error = ErrLockBusy
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	return "", lastErr
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
