package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
)

const (
	cbMenu        = "cmd:menu"
	cbClone       = "cmd:clone"
	cbRedeem      = "cmd:redeem"
	cbProfile     = "cmd:profile"
	cbLeaderboard = "cmd:leaderboard"
	cbRefer       = "cmd:refer"
	cbHelp        = "cmd:help"
)

type cbHandler func(ctx context.Context, chatID int64, actor wizard.Actor) error

// Exact-match callbacks from the main menu.
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		cbMenu: func(ctx context.Context, id int64, _ wizard.Actor) error {
			return r.sendMainMenu(ctx, id, r.facade.Text.T("menu_prompt"))
		},
		cbClone: func(ctx context.Context, id int64, a wizard.Actor) error {
			return r.startWizard(ctx, id, a, model.FlowClone, "")
		},
		cbRedeem: func(ctx context.Context, id int64, a wizard.Actor) error {
			return r.startWizard(ctx, id, a, model.FlowRedeem, "")
		},
		cbProfile: r.sendProfile,
		cbLeaderboard: func(ctx context.Context, id int64, _ wizard.Actor) error {
			text, err := r.facade.HandleLeaderboard(ctx)
			if err != nil {
				logging.With(ctx, r.log).Error().Err(err).Msg("leaderboard failed")
				text = r.facade.Text.T("error_generic")
			}
			return r.client.SendMessage(ctx, id, text)
		},
		cbRefer: r.sendRefer,
		cbHelp: func(ctx context.Context, id int64, _ wizard.Actor) error {
			return r.client.SendMessage(ctx, id, r.facade.HandleHelp())
		},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the telegram spinner when we return
	defer func() { _, _ = r.client.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	ctx = logging.WithTgID(ctx, query.From.ID)
	actor := actorOf(query.From)
	data := strings.TrimSpace(query.Data)

	if wizard.IsWizardCallback(data) {
		btn, ok := wizard.DecodeButton(data)
		if !ok {
			return errors.New("malformed wizard callback")
		}
		tr, handled, err := r.facade.WizardEvent(ctx, chatID, actor, wizard.ButtonEvent(btn))
		if !handled {
			// A button from a wizard that already finished or expired.
			return r.client.SendMessage(ctx, chatID, r.facade.Text.T("no_active_wizard"))
		}
		return r.render(ctx, chatID, tr, err)
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, actor)
	}
	return errors.New("unknown callback data")
}
