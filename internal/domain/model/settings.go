package model

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Action names a throttled or gated user operation.
type Action string

const (
	ActionClone   Action = "clone"
	ActionRedeem  Action = "redeem"
	ActionOther   Action = "other"
	ActionCodeGen Action = "code_gen"
)

// GatedActions are the actions a force-join rule may apply to.
var GatedActions = []Action{ActionClone, ActionRedeem}

// Settings is the mutable runtime configuration, owned by the ledger document.
type Settings struct {
	Channels          []string `json:"channels"`
	ForceJoinFor      []Action `json:"force_join_for"`
	Support           string   `json:"support"`
	MaxDaysPerCode    int      `json:"max_days_per_code"`
	MaxCodesPerUser   int      `json:"max_codes_per_user"`
	AdminCodeGenLimit int      `json:"admin_code_gen_limit"`
	CodeCategories    []string `json:"code_categories"`
}

func DefaultSettings() Settings {
	return Settings{
		Channels:          []string{},
		ForceJoinFor:      []Action{ActionClone, ActionRedeem},
		Support:           "@Admin",
		MaxDaysPerCode:    365,
		MaxCodesPerUser:   10,
		AdminCodeGenLimit: 50,
		CodeCategories:    []string{"General", "Special", "VIP", "Promo"},
	}
}

// NormalizeChannel strips whitespace and the leading @ from a channel username.
func NormalizeChannel(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

func (s *Settings) HasChannel(name string) bool {
	return slices.Contains(s.Channels, NormalizeChannel(name))
}

// AddChannel returns false when the channel is already gated.
func (s *Settings) AddChannel(name string) bool {
	name = NormalizeChannel(name)
	if name == "" || s.HasChannel(name) {
		return false
	}
	s.Channels = append(s.Channels, name)
	return true
}

// RemoveChannel returns false when the channel was not gated.
func (s *Settings) RemoveChannel(name string) bool {
	name = NormalizeChannel(name)
	if !s.HasChannel(name) {
		return false
	}
	s.Channels = lo.Without(s.Channels, name)
	return true
}

func (s *Settings) RequiresJoin(a Action) bool {
	return len(s.Channels) > 0 && slices.Contains(s.ForceJoinFor, a)
}

// ToggleForceJoin flips the gate for a and returns the new state.
func (s *Settings) ToggleForceJoin(a Action) bool {
	if slices.Contains(s.ForceJoinFor, a) {
		s.ForceJoinFor = lo.Without(s.ForceJoinFor, a)
		return false
	}
	s.ForceJoinFor = append(s.ForceJoinFor, a)
	return true
}

func (s *Settings) IsForced(a Action) bool { return slices.Contains(s.ForceJoinFor, a) }

func (s Settings) clone() Settings {
	cp := s
	cp.Channels = append([]string{}, s.Channels...)
	cp.ForceJoinFor = append([]Action{}, s.ForceJoinFor...)
	cp.CodeCategories = append([]string{}, s.CodeCategories...)
	return cp
}

// Copy returns a detached copy.
func (s Settings) Copy() Settings { return s.clone() }
