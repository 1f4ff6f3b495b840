package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
)

// Compile-time checks
var (
	_ adapter.Messenger         = (*BotClient)(nil)
	_ adapter.MembershipChecker = (*BotClient)(nil)
	_ adapter.ChannelVerifier   = (*BotClient)(nil)
	_ adapter.StickerCloner     = (*BotClient)(nil)
)

// BotClient is the outbound half of the Telegram integration. It implements
// every port the use cases call out through.
type BotClient struct {
	bot        *tgbotapi.BotAPI
	ownerID    int64
	packSuffix string
	http       *http.Client
	log        *zerolog.Logger
}

func NewBotClient(cfg config.BotConfig, logger *zerolog.Logger) (*BotClient, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newBotClient(bot, cfg, logger), nil
}

// NewBotClientWithEndpoint talks to a custom Bot API server, such as a
// self-hosted one or a test double. endpoint has the form
// "http://host/bot%s/%s".
func NewBotClientWithEndpoint(cfg config.BotConfig, endpoint string, hc *http.Client, logger *zerolog.Logger) (*BotClient, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, hc)
	if err != nil {
		return nil, err
	}
	return newBotClient(bot, cfg, logger), nil
}

func newBotClient(bot *tgbotapi.BotAPI, cfg config.BotConfig, logger *zerolog.Logger) *BotClient {
	l := logger.With().Str("component", "telegram").Logger()
	suffix := cfg.PackSuffix
	if suffix == "" {
		suffix = "_by_" + bot.Self.UserName
	}
	return &BotClient{
		bot:        bot,
		ownerID:    cfg.OwnerID,
		packSuffix: suffix,
		http:       &http.Client{Timeout: 60 * time.Second},
		log:        &l,
	}
}

// Username is the bot's own @username without the at sign.
func (c *BotClient) Username() string { return c.bot.Self.UserName }

func (c *BotClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return &domain.CollaboratorError{Op: "send message", Err: err}
	}
	return nil
}

// SendButtons sends text with an inline keyboard. Buttons with a URL open a
// link, the rest send their Data back as a callback.
func (c *BotClient) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	if _, err := c.bot.Send(msg); err != nil {
		return &domain.CollaboratorError{Op: "send buttons", Err: err}
	}
	return nil
}

func (c *BotClient) SendDocument(ctx context.Context, chatID int64, doc adapter.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Content})
	msg.Caption = doc.Caption
	if _, err := c.bot.Send(msg); err != nil {
		return &domain.CollaboratorError{Op: "send document", Err: err}
	}
	return nil
}

// SetMenuCommands installs the command menu for one chat. Admins see the
// administrative commands as well.
func (c *BotClient) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	commands := userCommands
	if isAdmin {
		commands = append(append([]tgbotapi.BotCommand(nil), userCommands...), adminCommands...)
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), commands...)
	if _, err := c.bot.Request(cfg); err != nil {
		return &domain.CollaboratorError{Op: "set menu commands", Err: err}
	}
	return nil
}

var userCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "clone", Description: "Clone a sticker pack"},
	{Command: "redeem", Description: "Redeem a premium code"},
	{Command: "profile", Description: "Your plan, points and codes"},
	{Command: "leaderboard", Description: "Top users by points"},
	{Command: "refer", Description: "Your invite link"},
	{Command: "help", Description: "How to use the bot"},
	{Command: "cancel", Description: "Cancel the current step"},
}

var adminCommands = []tgbotapi.BotCommand{
	{Command: "gen", Description: "Generate redeem codes"},
	{Command: "templates", Description: "Manage code templates"},
	{Command: "newtemplate", Description: "Define a code template"},
	{Command: "channels", Description: "Manage required channels"},
	{Command: "stats", Description: "Bot statistics"},
	{Command: "codestats", Description: "Redeem code statistics"},
	{Command: "settings", Description: "Current settings"},
	{Command: "broadcast", Description: "Message every user"},
}
