package redis

import (
	"context"
	"strings"

	"telegram-sticker-cloner/internal/config"

	"github.com/go-redis/redis/v8"
)

// Client wraps the go-redis client shared by the limit store, the document
// backend and the locker.
type Client struct {
	cli *redis.Client
}

// NewClient accepts either host:port or a redis:// URL.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.URL, DB: cfg.DB}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Close() error { return c.cli.Close() }
