package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/application"
	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/logging"
)

const shardBuffer = 64

// RealTelegramBotAdapter polls updates and delegates them to BotFacade.
type RealTelegramBotAdapter struct {
	client  *BotClient
	facade  *application.BotFacade
	workers int
	log     *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(client *BotClient, facade *application.BotFacade, workers int, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if client == nil {
		return nil, errors.New("bot client is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if workers <= 0 {
		workers = 4
	}
	l := logger.With().Str("component", "telegram_poller").Logger()
	return &RealTelegramBotAdapter{client: client, facade: facade, workers: workers, log: &l}, nil
}

// StartPolling blocks until ctx is cancelled. Updates are sharded by chat id
// so one chat is always handled by the same worker, in arrival order.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.client.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	defer r.client.bot.StopReceivingUpdates()

	shards := make([]chan tgbotapi.Update, r.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, shardBuffer)
		wg.Add(1)
		go func(id int, in <-chan tgbotapi.Update) {
			defer wg.Done()
			for up := range in {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update failed")
				}
			}
		}(i, shards[i])
	}
	r.log.Info().Int("workers", r.workers).Str("bot", r.client.Username()).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			for _, ch := range shards {
				close(ch)
			}
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			chatID := updateChatID(up)
			select {
			case shards[shardFor(chatID, r.workers)] <- up:
			case <-ctx.Done():
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func shardFor(chatID int64, n int) int {
	if chatID < 0 {
		chatID = -chatID
	}
	return int(chatID % int64(n))
}

func updateChatID(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil && up.Message.Chat != nil:
		return up.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.Message != nil && up.CallbackQuery.Message.Chat != nil:
		return up.CallbackQuery.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.From != nil:
		return up.CallbackQuery.From.ID
	}
	return 0
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())

	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	if msg.IsCommand() {
		return r.handleCommand(ctx, msg)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	tr, handled, err := r.facade.WizardEvent(ctx, msg.Chat.ID, actorOf(msg.From), wizard.TextEvent(msg.Text))
	if !handled {
		return r.client.SendMessage(ctx, msg.Chat.ID, r.facade.Text.T("unknown_command"))
	}
	return r.render(ctx, msg.Chat.ID, tr, err)
}

// render sends every reply of a wizard transition in order.
func (r *RealTelegramBotAdapter) render(ctx context.Context, chatID int64, tr wizard.Transition, stepErr error) error {
	if stepErr != nil {
		logging.With(ctx, r.log).Error().Err(stepErr).Int64("chat_id", chatID).Msg("wizard step failed")
		if len(tr.Replies) == 0 {
			return r.client.SendMessage(ctx, chatID, r.facade.Text.T("error_generic"))
		}
	}
	for _, reply := range tr.Replies {
		var err error
		switch {
		case reply.Document != nil:
			// the confirmation goes first, the listing file follows it
			if strings.TrimSpace(reply.Text) != "" {
				if err = r.client.SendMessage(ctx, chatID, reply.Text); err != nil {
					return err
				}
			}
			err = r.client.SendDocument(ctx, chatID, *reply.Document)
		case len(reply.Rows) > 0:
			err = r.client.SendButtons(ctx, chatID, reply.Text, reply.InlineRows())
		default:
			err = r.client.SendMessage(ctx, chatID, reply.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// sendMainMenu shows the main actions as inline buttons.
func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	t := r.facade.Text
	rows := [][]adapter.InlineButton{
		{{Text: t.T("btn_clone"), Data: cbClone}, {Text: t.T("btn_redeem"), Data: cbRedeem}},
		{{Text: t.T("btn_profile"), Data: cbProfile}, {Text: t.T("btn_leaderboard"), Data: cbLeaderboard}},
		{{Text: t.T("btn_refer"), Data: cbRefer}, {Text: t.T("btn_help"), Data: cbHelp}},
	}
	return r.client.SendButtons(ctx, chatID, intro, rows)
}

func actorOf(u *tgbotapi.User) wizard.Actor {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return wizard.Actor{ID: u.ID, Name: name}
}
