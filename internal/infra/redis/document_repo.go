package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.DocumentBackend = (*DocumentRepo)(nil)

// DocumentRepo stores the ledger document as one JSON value.
type DocumentRepo struct {
	cli *redis.Client
	key string
}

func NewDocumentRepo(c *Client, key string) *DocumentRepo {
	return &DocumentRepo{cli: c.cli, key: key}
}

func (r *DocumentRepo) Load(ctx context.Context) (*model.Document, error) {
	data, err := r.cli.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return &doc, nil
}

func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, r.key, data, 0).Err()
}
