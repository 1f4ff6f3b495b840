package redis

import (
	"context"
	"time"

	"telegram-sticker-cloner/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ repository.LimitStore = (*LimitStore)(nil)

// LimitStore keeps rate windows as sorted sets scored by unix millis and
// daily quotas as plain counters. Each check runs as one Lua script.
type LimitStore struct {
	cli *redis.Client
}

func NewLimitStore(c *Client) *LimitStore {
	return &LimitStore{cli: c.cli}
}

// KEYS[1] window key
// ARGV: now_ms, window_ms, limit, member
var luaSlideWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1`)

// KEYS[1] counter key
// ARGV: limit, ttl_ms
var luaIncrIfBelow = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n >= tonumber(ARGV[1]) then
	return 0
end
n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1`)

func (s *LimitStore) SlideWindow(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, error) {
	res, err := luaSlideWindow.Run(ctx, s.cli, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *LimitStore) IncrIfBelow(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
	res, err := luaIncrIfBelow.Run(ctx, s.cli, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
