package repository

import (
	"context"
	"time"
)

// Locker is a cross-process mutual exclusion primitive. TryLock returns a token
// that must be presented to Unlock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
