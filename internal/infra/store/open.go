package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/ports/repository"
	pg "telegram-sticker-cloner/internal/infra/db/postgres"
	red "telegram-sticker-cloner/internal/infra/redis"
)

// Open builds the store over the configured backend. rc may be nil unless the
// redis backend or the distributed lock is selected. The returned func
// releases whatever Open connected.
func Open(ctx context.Context, cfg *config.Config, rc *red.Client, logger *zerolog.Logger) (*Store, func(), error) {
	closer := func() {}
	var backend repository.DocumentBackend

	switch cfg.Store.Backend {
	case "file":
		backend = NewFileBackend(cfg.Store.Path)
	case "redis":
		if rc == nil {
			return nil, closer, fmt.Errorf("store: redis backend selected without a redis client")
		}
		backend = red.NewDocumentRepo(rc, cfg.Store.Key)
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, closer, fmt.Errorf("postgres: %w", err)
		}
		closer = pool.Close
		repo := pg.NewDocumentRepo(pool, pg.NewTxManager(pool), cfg.Store.Key)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("postgres schema: %w", err)
		}
		backend = repo
	default:
		return nil, closer, fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}

	opts := []Option{
		WithRetry(cfg.Store.Retries, cfg.Store.Backoff),
		WithAcquireTimeout(cfg.Store.AcquireTimeout),
		WithLogger(logger),
	}
	if cfg.Store.Distributed {
		if rc == nil {
			closer()
			return nil, func() {}, fmt.Errorf("store: distributed lock needs a redis client")
		}
		opts = append(opts, WithLocker(red.NewLocker(rc), cfg.Store.Key+":lock", cfg.Store.LockTTL))
	}

	st, err := New(ctx, backend, opts...)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	logger.Info().Str("backend", cfg.Store.Backend).Bool("distributed", cfg.Store.Distributed).Msg("store opened")
	return st, closer, nil
}
