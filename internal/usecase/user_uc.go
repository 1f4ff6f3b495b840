package usecase

import (
	"cmp"
	"context"
	"slices"
	"time"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by bot/admin flows.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, userID int64, name string, referrerID int64) (*Registration, error)
	Profile(ctx context.Context, userID int64) (*model.User, error)
	Leaderboard(ctx context.Context, n int) ([]*model.User, error)
	RecordClone(ctx context.Context, userID int64, name string) (*model.User, error)
	ExpireLapsedPlans(ctx context.Context) (expired, premium int, err error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// Registration reports what /start did. Referrer is set only when a new
// user was credited to an existing one.
type Registration struct {
	User     *model.User
	Created  bool
	Referrer *model.User
}

type userUC struct {
	store DocumentStore
	now   func() time.Time
	log   *zerolog.Logger
}

func NewUserUseCase(store DocumentStore, logger *zerolog.Logger) *userUC {
	return &userUC{store: store, now: time.Now, log: logger}
}

// WithClock replaces the time source.
func (u *userUC) WithClock(now func() time.Time) *userUC {
	u.now = now
	return u
}

// RegisterOrFetch creates the user on first contact. A new user started via a
// referral link earns the referrer one point; referrerID <= 0 means none.
func (u *userUC) RegisterOrFetch(ctx context.Context, userID int64, name string, referrerID int64) (*Registration, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var reg *Registration
	err := u.store.Update(ctx, "register_user", func(doc *model.Document) error {
		now := u.now()
		user, created, err := doc.EnsureUser(userID, name, now)
		if err != nil {
			return err
		}
		user.Touch(now)
		if !created && name != "" && user.Name != name {
			user.Name = name
		}
		reg = &Registration{Created: created}
		if created && referrerID > 0 && referrerID != userID {
			if ref, ok := doc.Users[referrerID]; ok {
				ref.Points++
				user.ReferredBy = &referrerID
				reg.Referrer = ref.Copy()
			}
		}
		reg.User = user.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reg.Created {
		metrics.IncUsersRegistered()
		ev := u.log.Info().Int64("user_id", userID)
		if reg.Referrer != nil {
			ev = ev.Int64("referrer_id", reg.Referrer.ID)
		}
		ev.Msg("user registered")
	}
	return reg, nil
}

func (u *userUC) Profile(ctx context.Context, userID int64) (*model.User, error) {
	var out *model.User
	err := u.store.View(ctx, func(doc *model.Document) error {
		user, ok := doc.Users[userID]
		if !ok {
			return domain.ErrNotFound
		}
		out = user.Copy()
		return nil
	})
	return out, err
}

// Leaderboard returns the n users with the most referral points.
func (u *userUC) Leaderboard(ctx context.Context, n int) ([]*model.User, error) {
	var users []*model.User
	err := u.store.View(ctx, func(doc *model.Document) error {
		users = lo.MapToSlice(doc.Users, func(_ int64, usr *model.User) *model.User { return usr.Copy() })
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b *model.User) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && len(users) > n {
		users = users[:n]
	}
	return users, nil
}

// RecordClone counts a completed pack clone.
func (u *userUC) RecordClone(ctx context.Context, userID int64, name string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RecordClone")()

	var out *model.User
	err := u.store.Update(ctx, "record_clone", func(doc *model.Document) error {
		now := u.now()
		user, _, err := doc.EnsureUser(userID, name, now)
		if err != nil {
			return err
		}
		user.Clones++
		user.LastUsed = &now
		user.Touch(now)
		out = user.Copy()
		return nil
	})
	return out, err
}

// ExpireLapsedPlans flips the plan tag of users whose entitlement ran out
// back to Normal. It returns the number flipped and the number still premium.
func (u *userUC) ExpireLapsedPlans(ctx context.Context) (int, int, error) {
	defer logging.TraceDuration(u.log, "UserUC.ExpireLapsedPlans")()

	var expired, premium int
	err := u.store.Update(ctx, "expire_plans", func(doc *model.Document) error {
		now := u.now()
		expired, premium = 0, 0
		for _, user := range doc.Users {
			switch {
			case user.IsPremium(now):
				premium++
			case user.Plan == model.PlanPremium:
				user.Plan = model.PlanNormal
				expired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	metrics.SetPremiumUsers(premium)
	if expired > 0 {
		u.log.Info().Int("expired", expired).Int("premium", premium).Msg("lapsed premium plans reset")
	}
	return expired, premium, nil
}

func (u *userUC) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := u.store.View(ctx, func(doc *model.Document) error {
		ids = lo.Keys(doc.Users)
		return nil
	})
	slices.Sort(ids)
	return ids, err
}
