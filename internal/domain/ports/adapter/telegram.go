package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

type Document struct {
	Name    string
	Content []byte
	Caption string
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	SendDocument(ctx context.Context, chatID int64, doc Document) error
}

type MemberStatus string

const (
	MemberJoined  MemberStatus = "member"
	MemberLeft    MemberStatus = "left"
	MemberKicked  MemberStatus = "kicked"
	MemberUnknown MemberStatus = "unknown"
)

// MembershipChecker answers whether a user is subscribed to a public channel.
type MembershipChecker interface {
	Status(ctx context.Context, channel string, userID int64) (MemberStatus, error)
}

// ChannelVerifier checks that a username resolves to a channel the bot can see.
type ChannelVerifier interface {
	IsChannel(ctx context.Context, channel string) (bool, error)
}

type StickerPack struct {
	Name     string
	Title    string
	Count    int
	Animated bool
}

type CloneResult struct {
	Name    string
	Title   string
	URL     string
	Added   int
	Skipped int
}

// StickerCloner reads a remote pack and re-creates it under the bot.
type StickerCloner interface {
	PackInfo(ctx context.Context, name string) (*StickerPack, error)
	Clone(ctx context.Context, ownerID int64, source, title string) (*CloneResult, error)
}
