package repository

import (
	"context"

	"telegram-sticker-cloner/internal/domain/model"
)

// SessionRepository keeps wizard sessions keyed by chat id.
type SessionRepository interface {
	// Get returns nil, nil when the chat has no session.
	Get(ctx context.Context, chatID int64) (*model.WizardSession, error)
	Save(ctx context.Context, s *model.WizardSession) error
	Delete(ctx context.Context, chatID int64) error
}
