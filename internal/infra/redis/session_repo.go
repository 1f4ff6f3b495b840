package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps wizard sessions in Redis so any bot replica can resume them.
type SessionRepo struct {
	cli *redis.Client
	ttl time.Duration
}

func NewSessionRepo(c *Client, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionRepo{cli: c.cli, ttl: ttl}
}

const sessionPrefix = "wizard_session:"

func (r *SessionRepo) sessionKey(chatID int64) string {
	return fmt.Sprintf("%s%d", sessionPrefix, chatID)
}

func (r *SessionRepo) Get(ctx context.Context, chatID int64) (*model.WizardSession, error) {
	data, err := r.cli.Get(ctx, r.sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.WizardSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *SessionRepo) Save(ctx context.Context, sess *model.WizardSession) error {
	cp := *sess
	cp.UpdatedAt = time.Now()
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, r.sessionKey(sess.ChatID), data, r.ttl).Err()
}

func (r *SessionRepo) Delete(ctx context.Context, chatID int64) error {
	return r.cli.Del(ctx, r.sessionKey(chatID)).Err()
}

// Reset drops every stored session and returns how many were removed.
// Sessions must not outlive the process that started them, so the bot calls
// it once at startup.
func (r *SessionRepo) Reset(ctx context.Context) (int, error) {
	removed := 0
	iter := r.cli.Scan(ctx, 0, sessionPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.cli.Del(ctx, batch...).Result()
		removed += int(n)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}
