package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/domain/ports/adapter"
)

var (
	_ adapter.Messenger         = (*NoopBotAdapter)(nil)
	_ adapter.MembershipChecker = (*NoopBotAdapter)(nil)
	_ adapter.ChannelVerifier   = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter is used in dev mode without a bot token. It logs outgoing
// messages instead of sending them and treats every user as a channel member.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "noop_telegram").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Interface("buttons", rows).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) SendDocument(ctx context.Context, chatID int64, doc adapter.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("name", doc.Name).Int("bytes", len(doc.Content)).Msg("send document")
	return nil
}

func (b *NoopBotAdapter) Status(ctx context.Context, channel string, userID int64) (adapter.MemberStatus, error) {
	return adapter.MemberJoined, nil
}

func (b *NoopBotAdapter) IsChannel(ctx context.Context, channel string) (bool, error) {
	return true, nil
}
