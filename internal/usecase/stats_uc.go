package usecase

import (
	"context"
	"time"

	"telegram-sticker-cloner/internal/domain/model"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	BotStats(ctx context.Context) (*BotStats, error)
	CodeStats(ctx context.Context) (*CodeStatsReport, error)
}

type BotStats struct {
	TotalUsers      int     `json:"total_users"`
	PremiumUsers    int     `json:"premium_users"`
	TotalClones     int     `json:"total_clones"`
	AvgClonesByUser float64 `json:"avg_clones_per_user"`
}

// CodeStatsReport combines the persisted counters with figures derived from
// the current code set. UsageRate only considers capped codes.
type CodeStatsReport struct {
	model.CodeStats
	ActiveCodes    int     `json:"active_codes"`
	ExpiredCodes   int     `json:"expired_codes"`
	TotalUses      int     `json:"total_uses"`
	TotalCapacity  int     `json:"total_capacity"`
	UsageRate      float64 `json:"usage_rate"`
	TodayGenerated int     `json:"today_generated"`
	TodayClaimed   int     `json:"today_claimed"`
}

type statsUC struct {
	store DocumentStore
	now   func() time.Time
	log   *zerolog.Logger
}

func NewStatsUseCase(store DocumentStore, logger *zerolog.Logger) *statsUC {
	return &statsUC{store: store, now: time.Now, log: logger}
}

// WithClock replaces the time source.
func (s *statsUC) WithClock(now func() time.Time) *statsUC {
	s.now = now
	return s
}

func (s *statsUC) BotStats(ctx context.Context) (*BotStats, error) {
	out := &BotStats{}
	err := s.store.View(ctx, func(doc *model.Document) error {
		now := s.now()
		users := lo.Values(doc.Users)
		out.TotalUsers = len(users)
		out.PremiumUsers = lo.CountBy(users, func(u *model.User) bool { return u.IsPremium(now) })
		out.TotalClones = lo.SumBy(users, func(u *model.User) int { return u.Clones })
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.TotalUsers > 0 {
		out.AvgClonesByUser = float64(out.TotalClones) / float64(out.TotalUsers)
	}
	return out, nil
}

func (s *statsUC) CodeStats(ctx context.Context) (*CodeStatsReport, error) {
	out := &CodeStatsReport{}
	cappedUses := 0
	err := s.store.View(ctx, func(doc *model.Document) error {
		now := s.now()
		today := now.Format(model.DayLayout)
		out.CodeStats = doc.Stats
		out.CodeStats.DailyGenerated = nil
		out.CodeStats.DailyClaimed = nil
		out.TodayGenerated = doc.Stats.DailyGenerated[today]
		out.TodayClaimed = doc.Stats.DailyClaimed[today]

		for _, rc := range doc.RedeemCodes {
			if rc.IsExpired(now) {
				out.ExpiredCodes++
			} else {
				out.ActiveCodes++
			}
			out.TotalUses += rc.Used
			if n, capped := rc.Limit.Max(); capped {
				out.TotalCapacity += n
				cappedUses += rc.Used
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.TotalCapacity > 0 {
		out.UsageRate = float64(cappedUses) / float64(out.TotalCapacity) * 100
	}
	return out, nil
}
