package usecase

import (
	"context"
	"sync"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Compile-time check
var _ AccessPolicy = (*accessPolicy)(nil)

type AccessOutcome int

const (
	AccessAllowed AccessOutcome = iota
	AccessMustJoinChannel
	AccessRateLimited
)

func (o AccessOutcome) String() string {
	switch o {
	case AccessAllowed:
		return "allowed"
	case AccessMustJoinChannel:
		return "must_join"
	case AccessRateLimited:
		return "rate_limited"
	}
	return "unknown"
}

// AccessDecision is the answer to "may this user start action now".
// Channels lists the gating channels the user has not joined; Ceiling is
// the window ceiling that was hit.
type AccessDecision struct {
	Outcome  AccessOutcome
	Channels []string
	Ceiling  int
}

func (d AccessDecision) Allowed() bool { return d.Outcome == AccessAllowed }

type AccessPolicy interface {
	CanEnter(ctx context.Context, userID int64, action model.Action) (AccessDecision, error)
}

const membershipFanout = 4

type accessPolicy struct {
	settings   SettingsReader
	membership adapter.MembershipChecker
	limiter    RateLimiter
	ownerID    int64
	log        *zerolog.Logger
}

func NewAccessPolicy(
	settings SettingsReader,
	membership adapter.MembershipChecker,
	limiter RateLimiter,
	ownerID int64,
	logger *zerolog.Logger,
) *accessPolicy {
	return &accessPolicy{
		settings:   settings,
		membership: membership,
		limiter:    limiter,
		ownerID:    ownerID,
		log:        logger,
	}
}

// CanEnter checks channel membership first and only then charges the rate
// window, so a user told to join a channel keeps their slot.
func (p *accessPolicy) CanEnter(ctx context.Context, userID int64, action model.Action) (AccessDecision, error) {
	defer logging.TraceDuration(p.log, "AccessPolicy.CanEnter")()

	if userID == p.ownerID {
		metrics.ObserveAccess(string(action), AccessAllowed.String())
		return AccessDecision{Outcome: AccessAllowed}, nil
	}

	set, err := p.settings.Get(ctx)
	if err != nil {
		return AccessDecision{}, err
	}
	if set.RequiresJoin(action) {
		if missing := p.missingChannels(ctx, set.Channels, userID); len(missing) > 0 {
			metrics.ObserveAccess(string(action), AccessMustJoinChannel.String())
			return AccessDecision{Outcome: AccessMustJoinChannel, Channels: missing}, nil
		}
	}

	ok, err := p.limiter.Allow(ctx, userID, action)
	if err != nil {
		return AccessDecision{}, err
	}
	if !ok {
		ceiling, err := p.limiter.Ceiling(ctx, userID, action)
		if err != nil {
			return AccessDecision{}, err
		}
		metrics.ObserveAccess(string(action), AccessRateLimited.String())
		return AccessDecision{Outcome: AccessRateLimited, Ceiling: ceiling}, nil
	}
	metrics.ObserveAccess(string(action), AccessAllowed.String())
	return AccessDecision{Outcome: AccessAllowed}, nil
}

// missingChannels returns the channels the user is not a member of, in
// configuration order. A failed lookup counts as not joined.
func (p *accessPolicy) missingChannels(ctx context.Context, channels []string, userID int64) []string {
	var (
		mu     sync.Mutex
		joined = make(map[string]bool, len(channels))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(membershipFanout)
	for _, ch := range channels {
		g.Go(func() error {
			status, err := p.membership.Status(gctx, ch, userID)
			if err != nil {
				p.log.Warn().Err(err).Str("channel", ch).Int64("user_id", userID).Msg("membership lookup failed")
				status = adapter.MemberUnknown
			}
			mu.Lock()
			joined[ch] = status == adapter.MemberJoined
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return lo.Filter(channels, func(ch string, _ int) bool { return !joined[ch] })
}
