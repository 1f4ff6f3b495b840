// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-sticker-cloner/internal/application"
	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/domain/ports/repository"
	tele "telegram-sticker-cloner/internal/infra/adapters/telegram"
	"telegram-sticker-cloner/internal/infra/i18n"
	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/memory"
	"telegram-sticker-cloner/internal/infra/metrics"
	red "telegram-sticker-cloner/internal/infra/redis"
	"telegram-sticker-cloner/internal/infra/sched"
	"telegram-sticker-cloner/internal/infra/store"
	"telegram-sticker-cloner/internal/infra/web"
	"telegram-sticker-cloner/internal/infra/worker"
	"telegram-sticker-cloner/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Redis ----
	var rc *red.Client
	if cfg.NeedsRedis() {
		var err error
		rc, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
	}

	// ---- Store ----
	st, closeStore, err := store.Open(ctx, cfg, rc, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer closeStore()

	// ---- Limits and wizard sessions ----
	var (
		limitStore   repository.LimitStore
		limitSweeper sched.LimitSweeper
	)
	switch cfg.Limits.Backend {
	case "redis":
		limitStore = red.NewLimitStore(rc)
	default:
		mem := memory.NewLimitStore(nil)
		limitStore, limitSweeper = mem, mem
	}

	var (
		sessions       repository.SessionRepository
		sessionSweeper sched.SessionSweeper
	)
	switch cfg.Wizard.Backend {
	case "redis":
		repo := red.NewSessionRepo(rc, cfg.Wizard.TTL)
		n, err := repo.Reset(ctx)
		if err != nil {
			return fmt.Errorf("reset wizard sessions: %w", err)
		}
		logger.Info().Int("removed", n).Msg("stale wizard sessions cleared")
		sessions = repo
	default:
		mem := memory.NewSessionStore(cfg.Wizard.TTL, nil)
		sessions, sessionSweeper = mem, mem
	}

	// ---- Telegram ports ----
	var (
		messenger  adapter.Messenger
		membership adapter.MembershipChecker
		verifier   adapter.ChannelVerifier
		cloner     adapter.StickerCloner
		client     *tele.BotClient
	)
	if cfg.Bot.Mode == "polling" {
		client, err = tele.NewBotClient(cfg.Bot, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		if cfg.Bot.Username == "" {
			cfg.Bot.Username = client.Username()
		}
		messenger, membership, verifier, cloner = client, client, client, client
	} else {
		noop := tele.NewNoopBotAdapter(logger)
		messenger, membership, verifier = noop, noop, noop
		logger.Warn().Msg("bot.mode=noop, cloning is disabled and messages are only logged")
	}

	// ---- Worker pool ----
	pool := worker.NewPool(cfg.Broadcast.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(st, cfg.Bot.OwnerID, logger, usecase.WithBulkMax(cfg.Limits.BulkMax))
	settingsUC := usecase.NewSettingsUseCase(st, verifier, logger)
	userUC := usecase.NewUserUseCase(st, logger)
	statsUC := usecase.NewStatsUseCase(st, logger)
	limiter := usecase.NewRateLimiter(limitStore, ledgerUC, settingsUC, cfg.Limits, cfg.Bot.OwnerID, logger)
	policy := usecase.NewAccessPolicy(settingsUC, membership, limiter, cfg.Bot.OwnerID, logger)
	broadcastUC := usecase.NewBroadcastUseCase(userUC, messenger, pool, cfg.Broadcast.PerSecond, logger)

	// ---- Wizard ----
	text, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	machine := wizard.NewMachine(wizard.Deps{
		Ledger:    ledgerUC,
		Settings:  settingsUC,
		Users:     userUC,
		Policy:    policy,
		Limiter:   limiter,
		Cloner:    cloner,
		Broadcast: broadcastUC,
		Text:      text,
		OwnerID:   cfg.Bot.OwnerID,
		IsAdmin:   cfg.IsAdmin,
		BulkMax:   cfg.Limits.BulkMax,
		DelayMax:  cfg.Limits.ActivationDelayMax,
		Logger:    logger,
	})
	engine := wizard.NewEngine(machine, sessions, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(userUC, limiter, statsUC, settingsUC, engine, messenger, text, cfg.Bot, cfg.Limits, logger)

	g, ctx := errgroup.WithContext(ctx)

	// ---- Telegram ----
	if client != nil {
		botAdapter, err := tele.NewRealTelegramBotAdapter(client, facade, cfg.Bot.Workers, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		g.Go(func() error { return botAdapter.StartPolling(ctx) })
	}

	// ---- Admin API ----
	if cfg.Admin.Port > 0 {
		auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Bot.OwnerID, cfg.Admin.TokenTTL)
		srv := web.NewServer(ledgerUC, statsUC, settingsUC, auth, cfg.Bot.OwnerID, logger)
		g.Go(func() error { return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Admin.Port)) })
	}

	// ---- Expiry worker ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.PlanExpiryInterval, cfg.Scheduler.SweepInterval, userUC, limitSweeper, sessionSweeper, logger)
	g.Go(func() error { return expiry.Run(ctx) })

	logger.Info().Str("mode", cfg.Bot.Mode).Str("store", cfg.Store.Backend).Msg("bot started")
	return g.Wait()
}
