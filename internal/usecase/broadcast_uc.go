package usecase

import (
	"context"
	"strings"
	"time"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/metrics"
	"telegram-sticker-cloner/internal/infra/worker"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type BroadcastUseCase interface {
	BroadcastMessage(ctx context.Context, senderID int64, message string) (int, error)
}

// RecipientLister lists every known user id.
type RecipientLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

type broadcastUC struct {
	users      RecipientLister
	bot        adapter.Messenger
	workerPool *worker.Pool
	perSecond  int
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	users RecipientLister,
	bot adapter.Messenger,
	pool *worker.Pool,
	perSecond int,
	logger *zerolog.Logger,
) BroadcastUseCase {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &broadcastUC{
		users:      users,
		bot:        bot,
		workerPool: pool,
		perSecond:  perSecond,
		log:        logger,
	}
}

// BroadcastMessage queues message for every user except the sender and
// returns the number of recipients. Delivery continues in the background.
func (uc *broadcastUC) BroadcastMessage(ctx context.Context, senderID int64, message string) (int, error) {
	if strings.TrimSpace(message) == "" {
		return 0, &domain.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	ids, err := uc.users.ListIDs(ctx)
	if err != nil {
		uc.log.Error().Err(err).Msg("Failed to fetch users for broadcast")
		return 0, err
	}
	recipients := lo.Without(ids, senderID)

	// Telegram allows roughly 30 messages per second per bot.
	throttle := time.NewTicker(time.Second / time.Duration(uc.perSecond))
	jobCtx := context.WithoutCancel(ctx)

	go func() {
		defer throttle.Stop()
		uc.log.Info().Int("user_count", len(recipients)).Msg("Starting broadcast job")

		for _, id := range recipients {
			<-throttle.C
			if err := uc.workerPool.SubmitWait(jobCtx, uc.createSendTask(id, message)); err != nil {
				metrics.IncBroadcast("dropped")
				uc.log.Warn().Err(err).Int64("tg_id", id).Msg("Failed to submit broadcast task to worker pool")
			}
		}
		uc.log.Info().Msg("Broadcast job finished queuing all tasks")
	}()

	return len(recipients), nil
}

func (uc *broadcastUC) createSendTask(chatID int64, message string) worker.Task {
	return func(ctx context.Context) error {
		if err := uc.bot.SendMessage(ctx, chatID, message); err != nil {
			// Usually the user blocked the bot.
			metrics.IncBroadcast("failed")
			uc.log.Warn().Err(err).Int64("tg_id", chatID).Msg("Failed to send broadcast message to user")
			return nil
		}
		metrics.IncBroadcast("sent")
		return nil
	}
}
