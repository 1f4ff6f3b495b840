package repository

import (
	"context"
	"time"
)

// LimitStore keeps rate windows and daily counters. Each call is atomic for
// its key, and calls on different keys must not serialize on each other.
type LimitStore interface {
	// SlideWindow drops stamps that are window or older, then records now
	// only when fewer than limit stamps remain.
	SlideWindow(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, error)
	// IncrIfBelow increments the counter only when it is below limit.
	IncrIfBelow(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error)
}
