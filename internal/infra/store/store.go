package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"
	"telegram-sticker-cloner/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Store owns the ledger document and serializes every read-modify-write on it.
// Updates run on a private copy which is published only after it has been
// persisted, so a failed update leaves no trace.
type Store struct {
	sem     chan struct{}
	doc     *model.Document
	backend repository.DocumentBackend

	locker  repository.Locker
	lockKey string
	lockTTL time.Duration

	retries        int
	backoff        time.Duration
	acquireTimeout time.Duration

	log *zerolog.Logger
}

type Option func(*Store)

// WithLocker adds a distributed lock around updates and reloads the document
// from the backend after taking it.
func WithLocker(l repository.Locker, key string, ttl time.Duration) Option {
	return func(s *Store) {
		s.locker = l
		s.lockKey = key
		s.lockTTL = ttl
	}
}

func WithRetry(retries int, backoff time.Duration) Option {
	return func(s *Store) {
		if retries >= 0 {
			s.retries = retries
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

func WithAcquireTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.acquireTimeout = d
		}
	}
}

func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			sl := l.With().Str("component", "Store").Logger()
			s.log = &sl
		}
	}
}

// New loads the document from backend, starting from defaults when none exists.
func New(ctx context.Context, backend repository.DocumentBackend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: nil backend")
	}
	nop := zerolog.Nop()
	s := &Store{
		sem:            make(chan struct{}, 1),
		backend:        backend,
		retries:        3,
		backoff:        50 * time.Millisecond,
		acquireTimeout: 2 * time.Second,
		log:            &nop,
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load document: %w", err)
	}
	if doc == nil {
		doc = model.NewDocument()
		if err := backend.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("store: save initial document: %w", err)
		}
		s.log.Info().Msg("initialized empty ledger document")
	}
	doc.Normalize()
	s.doc = doc
	return s, nil
}

// Update runs fn on a copy of the document and commits it if fn succeeds.
// Contention is retried, so fn may run more than once and must report its
// results only through variables it overwrites. Errors returned by fn are
// passed through unchanged and never retried.
func (s *Store) Update(ctx context.Context, op string, fn func(doc *model.Document) error) error {
	start := time.Now()
	err := s.withRetry(ctx, op, func() error { return s.update(ctx, fn) })
	switch {
	case err == nil:
		metrics.ObserveStoreUpdate(op, "ok", time.Since(start).Seconds())
	case errors.Is(err, domain.ErrStoreFailure):
		metrics.ObserveStoreUpdate(op, "failed", time.Since(start).Seconds())
	default:
		metrics.ObserveStoreUpdate(op, "rejected", time.Since(start).Seconds())
	}
	return err
}

// View runs fn against the current document inside the critical section.
// fn must not keep references into doc after it returns. With a distributed
// locker the document is first reloaded so reads see other replicas' commits;
// the backend load is a committed snapshot, so the lock itself is not taken.
func (s *Store) View(ctx context.Context, fn func(doc *model.Document) error) error {
	return s.withRetry(ctx, "view", func() error {
		release, err := s.acquireLocal(ctx)
		if err != nil {
			return err
		}
		defer release()
		if s.locker != nil {
			if err := s.reload(ctx); err != nil {
				return err
			}
		}
		return fn(s.doc)
	})
}

func (s *Store) withRetry(ctx context.Context, op string, attempt func() error) error {
	var lastErr error
	for i := 0; i <= s.retries; i++ {
		if i > 0 {
			metrics.IncStoreRetry(op)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, ctx.Err())
			case <-time.After(time.Duration(i) * s.backoff):
			}
		}
		err := attempt()
		if err == nil || !errors.Is(err, domain.ErrStoreContention) {
			return err
		}
		lastErr = err
		s.log.Warn().Err(err).Str("op", op).Int("attempt", i+1).Msg("store contention")
	}
	s.log.Error().Err(lastErr).Str("op", op).Msg("store update abandoned after retries")
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, lastErr)
}

func (s *Store) update(ctx context.Context, fn func(doc *model.Document) error) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.locker != nil {
		if err := s.reload(ctx); err != nil {
			return err
		}
	}

	work := s.doc.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, work); err != nil {
		return fmt.Errorf("%w: save: %w", domain.ErrStoreContention, err)
	}
	s.doc = work
	return nil
}

// reload replaces the cached document with the backend's. Callers hold the
// local semaphore.
func (s *Store) reload(ctx context.Context) error {
	fresh, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: reload: %w", domain.ErrStoreContention, err)
	}
	if fresh != nil {
		fresh.Normalize()
		s.doc = fresh
	}
	return nil
}

func (s *Store) acquireLocal(ctx context.Context) (func(), error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-actx.Done():
		return nil, fmt.Errorf("%w: acquire: %w", domain.ErrStoreContention, actx.Err())
	}
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	releaseLocal, err := s.acquireLocal(ctx)
	if err != nil {
		return nil, err
	}
	if s.locker == nil {
		return releaseLocal, nil
	}
	token, err := s.locker.TryLock(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("%w: distributed lock: %w", domain.ErrStoreContention, err)
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.locker.Unlock(uctx, s.lockKey, token); err != nil {
			s.log.Warn().Err(err).Msg("failed to release distributed lock")
		}
		releaseLocal()
	}, nil
}
