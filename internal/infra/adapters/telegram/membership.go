package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
)

// Status reports whether userID is subscribed to the public channel.
// Restricted members still count as joined.
func (c *BotClient) Status(ctx context.Context, channel string, userID int64) (adapter.MemberStatus, error) {
	if err := ctx.Err(); err != nil {
		return adapter.MemberUnknown, err
	}
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channelHandle(channel),
			UserID:             userID,
		},
	})
	if err != nil {
		return adapter.MemberUnknown, &domain.CollaboratorError{Op: "get chat member", Err: err}
	}
	return memberStatus(member.Status), nil
}

func memberStatus(s string) adapter.MemberStatus {
	switch s {
	case "creator", "administrator", "member", "restricted":
		return adapter.MemberJoined
	case "left":
		return adapter.MemberLeft
	case "kicked":
		return adapter.MemberKicked
	}
	return adapter.MemberUnknown
}

// IsChannel resolves the username and checks it is a channel the bot can read.
func (c *BotClient) IsChannel(ctx context.Context, channel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: channelHandle(channel)},
	})
	if err != nil {
		return false, &domain.CollaboratorError{Op: "get chat", Err: err}
	}
	return chat.IsChannel(), nil
}

func channelHandle(channel string) string {
	return "@" + strings.TrimPrefix(strings.TrimSpace(channel), "@")
}
