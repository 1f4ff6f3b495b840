package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/usecase"
)

const (
	leaderboardSize = 5
	recentCodes     = 3
)

// Translator renders message keys and the long help text.
type Translator interface {
	T(key string, args ...interface{}) string
	Help(args ...interface{}) string
}

// BotFacade composes usecases into high-level bot commands.
// Facade methods return ready-to-send text so the Telegram adapter just
// forwards them to the chat.
type BotFacade struct {
	Users    usecase.UserUseCase
	Limiter  usecase.RateLimiter
	Stats    usecase.StatsUseCase
	Settings usecase.SettingsUseCase
	Wizards  *wizard.Engine
	Notifier adapter.Messenger
	Text     Translator

	ownerID     int64
	adminIDs    []int64
	botUsername string
	limits      config.LimitsConfig
	now         func() time.Time
	log         *zerolog.Logger
}

func NewBotFacade(
	users usecase.UserUseCase,
	limiter usecase.RateLimiter,
	stats usecase.StatsUseCase,
	settings usecase.SettingsUseCase,
	wizards *wizard.Engine,
	notifier adapter.Messenger,
	text Translator,
	bot config.BotConfig,
	limits config.LimitsConfig,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		Users:       users,
		Limiter:     limiter,
		Stats:       stats,
		Settings:    settings,
		Wizards:     wizards,
		Notifier:    notifier,
		Text:        text,
		ownerID:     bot.OwnerID,
		adminIDs:    bot.AdminIDs,
		botUsername: bot.Username,
		limits:      limits,
		now:         time.Now,
		log:         logger,
	}
}

func (b *BotFacade) IsOwner(userID int64) bool { return userID == b.ownerID }

// IsAdmin includes the owner.
func (b *BotFacade) IsAdmin(userID int64) bool {
	return b.IsOwner(userID) || slices.Contains(b.adminIDs, userID)
}

// HandleStart registers the user. payload is the deep-link argument and
// names the referrer when it is a user id.
func (b *BotFacade) HandleStart(ctx context.Context, userID int64, name, payload string) (string, error) {
	referrerID, _ := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	reg, err := b.Users.RegisterOrFetch(ctx, userID, name, referrerID)
	if err != nil {
		return "", fmt.Errorf("register user: %w", err)
	}
	if reg.Referrer != nil && b.Notifier != nil {
		note := b.Text.T("referral_credited", reg.User.Name, reg.Referrer.Points)
		if err := b.Notifier.SendMessage(ctx, reg.Referrer.ID, note); err != nil {
			b.log.Warn().Err(err).Int64("referrer_id", reg.Referrer.ID).Msg("failed to notify referrer")
		}
	}
	if reg.Created {
		return b.Text.T("welcome", reg.User.Name), nil
	}
	return b.Text.T("welcome_back", reg.User.Name), nil
}

// HandleProfile shows plan, points and the most recent claimed codes.
func (b *BotFacade) HandleProfile(ctx context.Context, userID int64, name string) (string, error) {
	reg, err := b.Users.RegisterOrFetch(ctx, userID, name, 0)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	u := reg.User
	ceiling, err := b.Limiter.Ceiling(ctx, userID, model.ActionClone)
	if err != nil {
		return "", fmt.Errorf("clone ceiling: %w", err)
	}

	now := b.now()
	plan := model.PlanNormal
	if u.IsPremium(now) {
		plan = model.PlanPremium
	}
	var sb strings.Builder
	sb.WriteString(b.Text.T("profile", u.Name, u.ID, plan, u.Points, u.Clones, ceiling))
	if u.IsPremium(now) {
		sb.WriteString("\n" + b.Text.T("profile_premium", u.PremiumExpires.Format("2006-01-02 15:04")))
	}
	if codes := u.RecentCodes(recentCodes); len(codes) > 0 {
		sb.WriteString("\n\n" + b.Text.T("profile_codes_title"))
		for _, c := range codes {
			sb.WriteString("\n" + b.Text.T("profile_code_row", c.Name, c.Code, c.Days, c.ClaimedAt.Format(model.DayLayout)))
		}
	}
	return sb.String(), nil
}

func (b *BotFacade) HandleLeaderboard(ctx context.Context) (string, error) {
	top, err := b.Users.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		return "", fmt.Errorf("leaderboard: %w", err)
	}
	if len(top) == 0 {
		return b.Text.T("leaderboard_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.Text.T("leaderboard_title"))
	for i, u := range top {
		sb.WriteString("\n" + b.Text.T("leaderboard_row", i+1, u.Name, u.Points, u.Clones))
	}
	return sb.String(), nil
}

// HandleRefer returns the user's invite deep link.
func (b *BotFacade) HandleRefer(ctx context.Context, userID int64, name string) (string, error) {
	reg, err := b.Users.RegisterOrFetch(ctx, userID, name, 0)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	link := fmt.Sprintf("https://t.me/%s?start=%d", b.botUsername, userID)
	return b.Text.T("refer_link", link, reg.User.Points), nil
}

func (b *BotFacade) HandleHelp() string {
	return b.Text.Help(b.limits.CloneNormal, b.limits.ClonePremium)
}

// HandleStats builds the admin-facing bot statistics.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	s, err := b.Stats.BotStats(ctx)
	if err != nil {
		return "", fmt.Errorf("bot stats: %w", err)
	}
	return b.Text.T("stats", s.TotalUsers, s.PremiumUsers, s.TotalClones, s.AvgClonesByUser), nil
}

func (b *BotFacade) HandleCodeStats(ctx context.Context) (string, error) {
	s, err := b.Stats.CodeStats(ctx)
	if err != nil {
		return "", fmt.Errorf("code stats: %w", err)
	}
	return b.Text.T("codestats",
		s.TotalGenerated, s.TotalClaimed, s.TotalDays,
		s.ActiveCodes, s.ExpiredCodes, s.UniqueUsersClaimed,
		s.UsageRate, s.TodayGenerated, s.TodayClaimed,
	), nil
}

func (b *BotFacade) HandleSettings(ctx context.Context) (string, error) {
	set, err := b.Settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("settings: %w", err)
	}
	channels := b.Text.T("channels_none")
	if len(set.Channels) > 0 {
		channels = "@" + strings.Join(set.Channels, ", @")
	}
	forced := make([]string, 0, len(set.ForceJoinFor))
	for _, a := range set.ForceJoinFor {
		forced = append(forced, string(a))
	}
	return b.Text.T("settings",
		channels, strings.Join(forced, ", "), set.Support,
		set.MaxDaysPerCode, set.MaxCodesPerUser, set.AdminCodeGenLimit,
		strings.Join(set.CodeCategories, ", "),
	), nil
}

// StartWizard opens flow in chatID, replacing whatever was in progress.
func (b *BotFacade) StartWizard(ctx context.Context, chatID int64, actor wizard.Actor, flow model.WizardFlow) (wizard.Transition, error) {
	return b.Wizards.Begin(ctx, chatID, actor, flow)
}

// WizardEvent feeds ev to the chat's session. handled is false when the
// chat has no session for actor.
func (b *BotFacade) WizardEvent(ctx context.Context, chatID int64, actor wizard.Actor, ev wizard.Event) (tr wizard.Transition, handled bool, err error) {
	tr, err = b.Wizards.Handle(ctx, chatID, actor, ev)
	if errors.Is(err, domain.ErrNoSession) {
		return wizard.Transition{}, false, nil
	}
	return tr, true, err
}

// CancelWizard discards the chat's session, if any.
func (b *BotFacade) CancelWizard(ctx context.Context, chatID int64, actor wizard.Actor) (wizard.Transition, error) {
	tr, handled, err := b.WizardEvent(ctx, chatID, actor, wizard.CancelEvent())
	if !handled {
		return wizard.Transition{Done: true, Replies: []wizard.Reply{{Text: b.Text.T("no_active_wizard")}}}, nil
	}
	return tr, err
}
