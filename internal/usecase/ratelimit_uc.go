package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"
	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ RateLimiter = (*rateLimiter)(nil)

// RateLimiter decides whether a user or admin may perform an action now.
// A true result has already been charged against the window or quota.
type RateLimiter interface {
	Allow(ctx context.Context, userID int64, action model.Action) (bool, error)
	AllowAdmin(ctx context.Context, adminID int64, action model.Action) (bool, error)
	Ceiling(ctx context.Context, userID int64, action model.Action) (int, error)
}

// EntitlementReader is the part of the ledger the limiter depends on.
type EntitlementReader interface {
	IsPremium(ctx context.Context, userID int64) (bool, error)
	ClaimCount(ctx context.Context, userID int64) (int, error)
}

// SettingsReader returns a detached copy of the runtime settings.
type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

type rateLimiter struct {
	store    repository.LimitStore
	ledger   EntitlementReader
	settings SettingsReader
	limits   config.LimitsConfig
	ownerID  int64
	now      func() time.Time
	log      *zerolog.Logger
}

func NewRateLimiter(
	store repository.LimitStore,
	ledger EntitlementReader,
	settings SettingsReader,
	limits config.LimitsConfig,
	ownerID int64,
	logger *zerolog.Logger,
) *rateLimiter {
	if limits.Window <= 0 {
		limits.Window = time.Hour
	}
	if limits.AdminQuotaTTL <= 0 {
		limits.AdminQuotaTTL = 48 * time.Hour
	}
	return &rateLimiter{
		store:    store,
		ledger:   ledger,
		settings: settings,
		limits:   limits,
		ownerID:  ownerID,
		now:      time.Now,
		log:      logger,
	}
}

// WithClock replaces the limiter's time source.
func (r *rateLimiter) WithClock(now func() time.Time) *rateLimiter {
	r.now = now
	return r
}

func (r *rateLimiter) Allow(ctx context.Context, userID int64, action model.Action) (bool, error) {
	if userID == r.ownerID {
		return true, nil
	}

	if action == model.ActionRedeem {
		set, err := r.settings.Get(ctx)
		if err != nil {
			return false, err
		}
		claimed, err := r.ledger.ClaimCount(ctx, userID)
		if err != nil {
			return false, err
		}
		if claimed >= set.MaxCodesPerUser {
			metrics.ObserveRateLimit(string(action), false)
			return false, nil
		}
	}

	ceiling, err := r.Ceiling(ctx, userID, action)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("user_limits:%d:%s", userID, action)
	ok, err := r.store.SlideWindow(ctx, key, r.now(), r.limits.Window, ceiling)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("rate window check failed")
		return false, fmt.Errorf("rate limit %s: %w", action, err)
	}
	metrics.ObserveRateLimit(string(action), ok)
	if !ok {
		r.log.Debug().Int64("user_id", userID).Str("action", string(action)).Int("ceiling", ceiling).Msg("rate limited")
	}
	return ok, nil
}

// AllowAdmin charges one unit of the admin's daily quota for action.
func (r *rateLimiter) AllowAdmin(ctx context.Context, adminID int64, action model.Action) (bool, error) {
	if adminID == r.ownerID {
		return true, nil
	}
	set, err := r.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("admin_actions:%d:%s:%s", adminID, action, r.now().Format(model.DayLayout))
	ok, err := r.store.IncrIfBelow(ctx, key, set.AdminCodeGenLimit, r.limits.AdminQuotaTTL)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("admin quota check failed")
		return false, fmt.Errorf("admin quota %s: %w", action, err)
	}
	metrics.ObserveAdminQuota(string(action), ok)
	return ok, nil
}

// Ceiling is the number of calls per window the user gets for action.
func (r *rateLimiter) Ceiling(ctx context.Context, userID int64, action model.Action) (int, error) {
	switch action {
	case model.ActionClone:
		premium, err := r.ledger.IsPremium(ctx, userID)
		if err != nil {
			return 0, err
		}
		if premium {
			return r.limits.ClonePremium, nil
		}
		return r.limits.CloneNormal, nil
	case model.ActionRedeem:
		return r.limits.Redeem, nil
	default:
		return r.limits.Other, nil
	}
}
