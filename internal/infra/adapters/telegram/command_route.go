package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":       r.handleStartCommand,
		"redeem":      r.wizardCommand(model.FlowRedeem),
		"clone":       r.wizardCommand(model.FlowClone),
		"profile":     r.handleProfileCommand,
		"leaderboard": r.textCommand(func(ctx context.Context, _ *tgbotapi.Message) (string, error) { return r.facade.HandleLeaderboard(ctx) }),
		"refer":       r.handleReferCommand,
		"help":        r.textCommand(func(context.Context, *tgbotapi.Message) (string, error) { return r.facade.HandleHelp(), nil }),
		"cancel":      r.handleCancelCommand,

		// Admins may generate codes under their daily quota.
		"gen": r.adminOnly(r.wizardCommand(model.FlowGenerateCode)),

		"templates":   r.ownerOnly(r.wizardCommand(model.FlowManageTemplates)),
		"newtemplate": r.ownerOnly(r.wizardCommand(model.FlowDefineTemplate)),
		"channels":    r.ownerOnly(r.wizardCommand(model.FlowManageChannels)),
		"broadcast":   r.ownerOnly(r.wizardCommand(model.FlowBroadcast)),
		"stats":       r.ownerOnly(r.textCommand(func(ctx context.Context, _ *tgbotapi.Message) (string, error) { return r.facade.HandleStats(ctx) })),
		"codestats":   r.ownerOnly(r.textCommand(func(ctx context.Context, _ *tgbotapi.Message) (string, error) { return r.facade.HandleCodeStats(ctx) })),
		"settings":    r.ownerOnly(r.textCommand(func(ctx context.Context, _ *tgbotapi.Message) (string, error) { return r.facade.HandleSettings(ctx) })),
	}
}

func (r *RealTelegramBotAdapter) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	cmd := strings.ToLower(message.Command())
	metrics.IncTelegramCommand("/" + cmd)
	if fn, ok := r.commandRoutes()[cmd]; ok {
		return fn(ctx, message)
	}
	return r.client.SendMessage(ctx, message.Chat.ID, r.facade.Text.T("unknown_command"))
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return r.guard(r.facade.IsAdmin, next)
}

func (r *RealTelegramBotAdapter) ownerOnly(next commandHandler) commandHandler {
	return r.guard(r.facade.IsOwner, next)
}

func (r *RealTelegramBotAdapter) guard(allowed func(int64) bool, next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !allowed(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return r.client.SendMessage(ctx, message.Chat.ID, r.facade.Text.T("not_authorized"))
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// textCommand adapts a facade call that produces a single message.
func (r *RealTelegramBotAdapter) textCommand(fn func(ctx context.Context, message *tgbotapi.Message) (string, error)) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		text, err := fn(ctx, message)
		if err != nil {
			logging.With(ctx, r.log).Error().Err(err).Str("command", message.Command()).Msg("command failed")
			text = r.facade.Text.T("error_generic")
		}
		return r.client.SendMessage(ctx, message.Chat.ID, text)
	}
}

// wizardCommand opens flow. Arguments after the command are fed to the first
// step, so "/redeem CODE" works in one message.
func (r *RealTelegramBotAdapter) wizardCommand(flow model.WizardFlow) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		return r.startWizard(ctx, message.Chat.ID, actorOf(message.From), flow, message.CommandArguments())
	}
}

func (r *RealTelegramBotAdapter) startWizard(ctx context.Context, chatID int64, actor wizard.Actor, flow model.WizardFlow, args string) error {
	tr, err := r.facade.StartWizard(ctx, chatID, actor, flow)
	args = strings.TrimSpace(args)
	if err != nil || tr.Done || args == "" {
		return r.render(ctx, chatID, tr, err)
	}
	next, handled, err := r.facade.WizardEvent(ctx, chatID, actor, wizard.TextEvent(args))
	if !handled {
		return r.render(ctx, chatID, tr, nil)
	}
	return r.render(ctx, chatID, next, err)
}

// handleStartCommand registers the user, installs the menu for their role
// and shows the main menu.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	actor := actorOf(message.From)
	text, err := r.facade.HandleStart(ctx, actor.ID, actor.Name, message.CommandArguments())
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("start failed")
		return r.client.SendMessage(ctx, message.Chat.ID, r.facade.Text.T("error_generic"))
	}
	if err := r.client.SetMenuCommands(ctx, message.Chat.ID, r.facade.IsAdmin(actor.ID)); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", actor.ID).Msg("failed to set dynamic menu commands")
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleProfileCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendProfile(ctx, message.Chat.ID, actorOf(message.From))
}

func (r *RealTelegramBotAdapter) handleReferCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendRefer(ctx, message.Chat.ID, actorOf(message.From))
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	tr, err := r.facade.CancelWizard(ctx, message.Chat.ID, actorOf(message.From))
	return r.render(ctx, message.Chat.ID, tr, err)
}

func (r *RealTelegramBotAdapter) sendProfile(ctx context.Context, chatID int64, actor wizard.Actor) error {
	text, err := r.facade.HandleProfile(ctx, actor.ID, actor.Name)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("profile failed")
		text = r.facade.Text.T("error_generic")
	}
	return r.client.SendMessage(ctx, chatID, text)
}

func (r *RealTelegramBotAdapter) sendRefer(ctx context.Context, chatID int64, actor wizard.Actor) error {
	text, err := r.facade.HandleRefer(ctx, actor.ID, actor.Name)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("refer failed")
		text = r.facade.Text.T("error_generic")
	}
	return r.client.SendMessage(ctx, chatID, text)
}
