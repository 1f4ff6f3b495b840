// Package memory holds process-local implementations of the repository ports.
package memory

import (
	"context"
	"sync"
	"time"

	"telegram-sticker-cloner/internal/domain/ports/repository"
)

var _ repository.LimitStore = (*LimitStore)(nil)

// LimitStore keeps one entry per key, each with its own mutex, so checks on
// different keys never wait on each other.
type LimitStore struct {
	windows  sync.Map // key -> *windowState
	counters sync.Map // key -> *counterState
	now      func() time.Time
}

type windowState struct {
	mu     sync.Mutex
	stamps []time.Time
	window time.Duration
	dead   bool
}

type counterState struct {
	mu      sync.Mutex
	n       int
	expires time.Time
	dead    bool
}

func NewLimitStore(now func() time.Time) *LimitStore {
	if now == nil {
		now = time.Now
	}
	return &LimitStore{now: now}
}

func (s *LimitStore) SlideWindow(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, error) {
	for {
		v, _ := s.windows.LoadOrStore(key, &windowState{})
		w := v.(*windowState)
		w.mu.Lock()
		if w.dead {
			// swept while we were waiting, retry on the fresh entry
			w.mu.Unlock()
			continue
		}
		w.window = window
		w.stamps = prune(w.stamps, now, window)
		allowed := len(w.stamps) < limit
		if allowed {
			w.stamps = append(w.stamps, now)
		}
		w.mu.Unlock()
		return allowed, nil
	}
}

func (s *LimitStore) IncrIfBelow(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
	now := s.now()
	for {
		v, _ := s.counters.LoadOrStore(key, &counterState{})
		c := v.(*counterState)
		c.mu.Lock()
		if c.dead {
			c.mu.Unlock()
			continue
		}
		if !c.expires.IsZero() && !now.Before(c.expires) {
			c.n = 0
			c.expires = time.Time{}
		}
		allowed := c.n < limit
		if allowed {
			c.n++
			if c.n == 1 {
				c.expires = now.Add(ttl)
			}
		}
		c.mu.Unlock()
		return allowed, nil
	}
}

// Sweep drops windows with no live stamps and expired counters. It returns
// the number of keys removed.
func (s *LimitStore) Sweep(now time.Time) int {
	removed := 0
	s.windows.Range(func(k, v any) bool {
		w := v.(*windowState)
		w.mu.Lock()
		w.stamps = prune(w.stamps, now, w.window)
		if len(w.stamps) == 0 {
			w.dead = true
			s.windows.Delete(k)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	s.counters.Range(func(k, v any) bool {
		c := v.(*counterState)
		c.mu.Lock()
		if !c.expires.IsZero() && !now.Before(c.expires) {
			c.dead = true
			s.counters.Delete(k)
			removed++
		}
		c.mu.Unlock()
		return true
	})
	return removed
}

// prune keeps stamps younger than window, in place.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := stamps[:0]
	for _, t := range stamps {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}
