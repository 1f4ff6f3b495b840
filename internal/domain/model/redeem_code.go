package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-sticker-cloner/internal/domain"
)

// UsageLimit is either a positive cap on redemptions or unlimited.
// The zero value is invalid; use Capped or Unlimited.
type UsageLimit struct {
	n         int
	unlimited bool
}

func Capped(n int) UsageLimit { return UsageLimit{n: n} }

func Unlimited() UsageLimit { return UsageLimit{unlimited: true} }

func (l UsageLimit) IsUnlimited() bool { return l.unlimited }

// Max returns the cap and false for an unlimited limit.
func (l UsageLimit) Max() (int, bool) { return l.n, !l.unlimited }

func (l UsageLimit) Valid() bool { return l.unlimited || l.n >= 1 }

// Allows reports whether one more redemption fits after used ones.
func (l UsageLimit) Allows(used int) bool { return l.unlimited || used < l.n }

// Remaining returns the uses left; ok is false when unlimited.
func (l UsageLimit) Remaining(used int) (left int, ok bool) {
	if l.unlimited {
		return 0, false
	}
	if used >= l.n {
		return 0, true
	}
	return l.n - used, true
}

func (l UsageLimit) String() string {
	if l.unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(l.n)
}

func (l UsageLimit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(l.n)), nil
}

func (l *UsageLimit) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.EqualFold(s, "unlimited") {
			*l = Unlimited()
			return nil
		}
		return fmt.Errorf("usage limit: unexpected value %q", s)
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("usage limit: %w", err)
	}
	*l = Capped(n)
	return nil
}

type Claim struct {
	UserID    int64     `json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// RedeemCode grants Days of premium to each claimant, within Limit claims,
// between ActivateAt (inclusive) and ExpiresAt (exclusive).
type RedeemCode struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Days       int        `json:"days"`
	Limit      UsageLimit `json:"limit"`
	Used       int        `json:"used"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	ActivateAt time.Time  `json:"activate_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Claims     []Claim    `json:"claims"`
}

func (c *RedeemCode) ClaimedBy(userID int64) bool {
	for _, cl := range c.Claims {
		if cl.UserID == userID {
			return true
		}
	}
	return false
}

func (c *RedeemCode) IsExpired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// Usable reports whether the code can still be claimed by someone at now.
func (c *RedeemCode) Usable(now time.Time) bool {
	return !now.Before(c.ActivateAt) && !c.IsExpired(now) && c.Limit.Allows(c.Used)
}

// CheckClaim runs the redemption checks in their user-visible order.
// It does not look at the claimant's own quota.
func (c *RedeemCode) CheckClaim(userID int64, now time.Time) error {
	if now.Before(c.ActivateAt) {
		return &domain.EntitlementError{Err: domain.ErrCodeNotYetActive, Code: c.Code, ActivateAt: c.ActivateAt}
	}
	if !c.Limit.Allows(c.Used) {
		max, _ := c.Limit.Max()
		return &domain.EntitlementError{Err: domain.ErrCodeExhausted, Code: c.Code, Limit: max, Used: c.Used}
	}
	if c.ClaimedBy(userID) {
		return &domain.EntitlementError{Err: domain.ErrAlreadyClaimed, Code: c.Code}
	}
	if c.IsExpired(now) {
		return &domain.EntitlementError{Err: domain.ErrCodeExpired, Code: c.Code, ExpiresAt: c.ExpiresAt}
	}
	return nil
}

// AddClaim records a claim. Callers must run CheckClaim first.
func (c *RedeemCode) AddClaim(userID int64, now time.Time) {
	c.Claims = append(c.Claims, Claim{UserID: userID, ClaimedAt: now})
	c.Used = len(c.Claims)
}

func (c *RedeemCode) clone() *RedeemCode {
	cp := *c
	cp.Claims = append([]Claim(nil), c.Claims...)
	return &cp
}

// Copy returns a detached copy safe to hand out of a critical section.
func (c *RedeemCode) Copy() *RedeemCode { return c.clone() }
