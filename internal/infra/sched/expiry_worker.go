package sched

import (
	"context"
	"time"

	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PlanExpirer resets lapsed premium plans.
type PlanExpirer interface {
	ExpireLapsedPlans(ctx context.Context) (expired, premium int, err error)
}

// LimitSweeper drops idle rate windows and spent quotas.
type LimitSweeper interface {
	Sweep(now time.Time) int
}

// SessionSweeper drops abandoned wizard sessions.
type SessionSweeper interface {
	Sweep() int
	Len() int
}

// ExpiryWorker periodically resets lapsed plans and sweeps in-process state.
// Either sweeper may be nil when its backend expires keys on its own.
type ExpiryWorker struct {
	planInterval  time.Duration
	sweepInterval time.Duration
	plans         PlanExpirer
	limits        LimitSweeper
	sessions      SessionSweeper
	now           func() time.Time
	log           *zerolog.Logger
}

func NewExpiryWorker(
	planInterval, sweepInterval time.Duration,
	plans PlanExpirer,
	limits LimitSweeper,
	sessions SessionSweeper,
	logger *zerolog.Logger,
) *ExpiryWorker {
	if planInterval <= 0 {
		planInterval = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		planInterval:  planInterval,
		sweepInterval: sweepInterval,
		plans:         plans,
		limits:        limits,
		sessions:      sessions,
		now:           time.Now,
		log:           &exprLog,
	}
}

// WithClock replaces the time source used for sweeping.
func (w *ExpiryWorker) WithClock(now func() time.Time) *ExpiryWorker {
	w.now = now
	return w
}

// Run expires plans once at start and then on every tick until ctx is done.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("plan_interval", w.planInterval).Dur("sweep_interval", w.sweepInterval).Msg("Starting expiry worker")
	planTicker := time.NewTicker(w.planInterval)
	defer planTicker.Stop()
	sweepTicker := time.NewTicker(w.sweepInterval)
	defer sweepTicker.Stop()

	w.ExpirePlans(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-planTicker.C:
			w.ExpirePlans(ctx)
		case <-sweepTicker.C:
			w.Sweep()
		}
	}
}

// ExpirePlans returns the number of plans reset.
func (w *ExpiryWorker) ExpirePlans(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, _, err := w.plans.ExpireLapsedPlans(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
		return 0
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("lapsed premium plans reset")
	}
	return n
}

// Sweep returns the number of limit keys and sessions removed.
func (w *ExpiryWorker) Sweep() (limits, sessions int) {
	if w.limits != nil {
		limits = w.limits.Sweep(w.now())
	}
	if w.sessions != nil {
		sessions = w.sessions.Sweep()
		metrics.SetWizardSessions(w.sessions.Len())
	}
	if limits+sessions > 0 {
		w.log.Debug().Int("limit_keys", limits).Int("sessions", sessions).Msg("swept idle state")
	}
	return limits, sessions
}
