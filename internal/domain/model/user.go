package model

import (
	"time"

	"telegram-sticker-cloner/internal/domain"
)

type PlanTag string

const (
	PlanNormal  PlanTag = "Normal"
	PlanPremium PlanTag = "Premium"
)

// CodeHistoryEntry records one claimed code on the user's profile.
type CodeHistoryEntry struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Days      int       `json:"days"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// User is a Telegram user known to the bot. Users are never deleted.
type User struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	Points         int                `json:"points"`
	Clones         int                `json:"clones"`
	Plan           PlanTag            `json:"plan"`
	PremiumExpires *time.Time         `json:"premium_expires,omitempty"`
	CodeHistory    []CodeHistoryEntry `json:"code_history"`
	LastUsed       *time.Time         `json:"last_used,omitempty"`
	ReferredBy     *int64             `json:"referred_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastActiveAt   time.Time          `json:"last_active_at"`
}

func NewUser(id int64, name string, now time.Time) (*User, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if name == "" {
		name = "User"
	}
	return &User{
		ID:           id,
		Name:         name,
		Points:       1,
		Plan:         PlanNormal,
		CreatedAt:    now,
		LastActiveAt: now,
	}, nil
}

func (u *User) Touch(now time.Time) { u.LastActiveAt = now }

// IsPremium reports whether the entitlement is still running at now.
func (u *User) IsPremium(now time.Time) bool {
	return u != nil && u.PremiumExpires != nil && u.PremiumExpires.After(now)
}

// ExtendPremium adds days to the entitlement. A running entitlement is extended
// from its current expiry, a lapsed or missing one from now.
func (u *User) ExtendPremium(days int, now time.Time) time.Time {
	base := now
	if u.IsPremium(now) {
		base = *u.PremiumExpires
	}
	exp := base.Add(time.Duration(days) * 24 * time.Hour)
	u.PremiumExpires = &exp
	u.Plan = PlanPremium
	return exp
}

func (u *User) ClaimedCount() int { return len(u.CodeHistory) }

// RecentCodes returns up to n most recent history entries, newest last.
func (u *User) RecentCodes(n int) []CodeHistoryEntry {
	if n <= 0 || len(u.CodeHistory) == 0 {
		return nil
	}
	if len(u.CodeHistory) <= n {
		return u.CodeHistory
	}
	return u.CodeHistory[len(u.CodeHistory)-n:]
}

func (u *User) clone() *User {
	c := *u
	if u.PremiumExpires != nil {
		t := *u.PremiumExpires
		c.PremiumExpires = &t
	}
	if u.LastUsed != nil {
		t := *u.LastUsed
		c.LastUsed = &t
	}
	if u.ReferredBy != nil {
		r := *u.ReferredBy
		c.ReferredBy = &r
	}
	c.CodeHistory = append([]CodeHistoryEntry(nil), u.CodeHistory...)
	return &c
}

// Copy returns a detached copy.
func (u *User) Copy() *User { return u.clone() }
