package repository

import (
	"context"

	"telegram-sticker-cloner/internal/domain/model"
)

// DocumentBackend persists the whole ledger document.
// Load returns (nil, nil) when nothing has been saved yet.
type DocumentBackend interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
}
