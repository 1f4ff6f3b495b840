package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/logging"
)

const (
	defaultEmoji = "✨"
	maxTGSBytes  = 64 << 10
)

func (c *BotClient) PackInfo(ctx context.Context, name string) (*adapter.StickerPack, error) {
	set, err := c.stickerSet(ctx, name)
	if err != nil {
		return nil, err
	}
	return &adapter.StickerPack{
		Name:     set.Name,
		Title:    set.Title,
		Count:    len(set.Stickers),
		Animated: set.IsAnimated,
	}, nil
}

// Clone copies the source pack into a new pack owned by ownerID. Static
// stickers are re-used by file id, animated ones are downloaded and uploaded
// again. Stickers that cannot be added are skipped; the clone fails only if
// the pack itself cannot be created.
func (c *BotClient) Clone(ctx context.Context, ownerID int64, source, title string) (*adapter.CloneResult, error) {
	defer logging.TraceDuration(c.log, "BotClient.Clone")()

	set, err := c.stickerSet(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(set.Stickers) == 0 {
		return nil, &domain.CollaboratorError{Op: "clone sticker pack", Err: errors.New("source pack is empty")}
	}

	name := fmt.Sprintf("s_%d_%d%s", 100+rand.IntN(900), ownerID, c.packSuffix)
	res := &adapter.CloneResult{Name: name, Title: title, URL: "https://t.me/addstickers/" + name}

	first, rest, skipped := c.firstUsable(ctx, set.Stickers)
	res.Skipped += skipped
	if first == nil {
		return nil, &domain.CollaboratorError{Op: "clone sticker pack", Err: errors.New("no sticker could be prepared")}
	}

	creator, err := c.createSet(ownerID, name, title, *first)
	if err != nil {
		return nil, err
	}
	res.Added++

	for _, st := range rest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, err := c.prepare(ctx, st)
		if err == nil {
			err = c.addSticker(creator, name, in)
		}
		if err != nil {
			c.log.Debug().Err(err).Str("pack", name).Str("file_id", st.FileID).Msg("sticker skipped")
			res.Skipped++
			continue
		}
		res.Added++
	}
	c.log.Info().Int64("user_id", ownerID).Str("source", source).Str("pack", name).
		Int("added", res.Added).Int("skipped", res.Skipped).Msg("sticker pack cloned")
	return res, nil
}

func (c *BotClient) stickerSet(ctx context.Context, name string) (tgbotapi.StickerSet, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.StickerSet{}, err
	}
	set, err := c.bot.GetStickerSet(tgbotapi.GetStickerSetConfig{Name: name})
	if err != nil {
		return tgbotapi.StickerSet{}, &domain.CollaboratorError{Op: "get sticker set", Err: err}
	}
	return set, nil
}

// stickerInput is one sticker ready to be sent to the Bot API.
type stickerInput struct {
	png      tgbotapi.RequestFileData
	tgs      tgbotapi.RequestFileData
	emojis   string
	animated bool
}

func (c *BotClient) prepare(ctx context.Context, st tgbotapi.Sticker) (stickerInput, error) {
	in := stickerInput{emojis: st.Emoji, animated: st.IsAnimated}
	if in.emojis == "" {
		in.emojis = defaultEmoji
	}
	if !st.IsAnimated {
		in.png = tgbotapi.FileID(st.FileID)
		return in, nil
	}
	body, err := c.download(ctx, st.FileID)
	if err != nil {
		return stickerInput{}, err
	}
	in.tgs = tgbotapi.FileBytes{Name: "sticker.tgs", Bytes: body}
	return in, nil
}

// firstUsable prepares stickers until one succeeds. It returns that sticker,
// the remaining unprepared ones and how many were dropped on the way.
func (c *BotClient) firstUsable(ctx context.Context, stickers []tgbotapi.Sticker) (*stickerInput, []tgbotapi.Sticker, int) {
	for i, st := range stickers {
		in, err := c.prepare(ctx, st)
		if err != nil {
			c.log.Debug().Err(err).Str("file_id", st.FileID).Msg("sticker skipped")
			continue
		}
		return &in, stickers[i+1:], i
	}
	return nil, nil, len(stickers)
}

// createSet creates the pack for ownerID. Telegram refuses sets for users who
// never started the bot, in which case the owner account holds the pack.
func (c *BotClient) createSet(ownerID int64, name, title string, first stickerInput) (int64, error) {
	err := c.newSet(ownerID, name, title, first)
	if err != nil && strings.Contains(err.Error(), "STICKERSET_INVALID") && c.ownerID != 0 && c.ownerID != ownerID {
		c.log.Warn().Err(err).Int64("user_id", ownerID).Msg("creating pack under the owner account")
		ownerID = c.ownerID
		err = c.newSet(ownerID, name, title, first)
	}
	if err != nil {
		return 0, &domain.CollaboratorError{Op: "create sticker set", Err: err}
	}
	return ownerID, nil
}

func (c *BotClient) newSet(userID int64, name, title string, in stickerInput) error {
	cfg := tgbotapi.NewStickerSetConfig{UserID: userID, Name: name, Title: title, Emojis: in.emojis}
	if in.animated {
		cfg.TGSSticker = in.tgs
	} else {
		cfg.PNGSticker = in.png
	}
	_, err := c.bot.Request(cfg)
	return err
}

func (c *BotClient) addSticker(userID int64, name string, in stickerInput) error {
	cfg := tgbotapi.AddStickerConfig{UserID: userID, Name: name, Emojis: in.emojis}
	if in.animated {
		cfg.TGSSticker = in.tgs
	} else {
		cfg.PNGSticker = in.png
	}
	_, err := c.bot.Request(cfg)
	return err
}

func (c *BotClient) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download sticker: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTGSBytes))
}
