package model

import (
	"maps"
	"time"
)

const DayLayout = "2006-01-02"

// CodeStats are the aggregate generation and redemption counters.
type CodeStats struct {
	TotalGenerated     int            `json:"total_generated"`
	TotalClaimed       int            `json:"total_claimed"`
	TotalDays          int            `json:"total_days"`
	UniqueUsersClaimed int            `json:"unique_users_claimed"`
	DailyGenerated     map[string]int `json:"daily_generated"`
	DailyClaimed       map[string]int `json:"daily_claimed"`
}

func (s *CodeStats) RecordGenerated(days int, now time.Time) {
	if s.DailyGenerated == nil {
		s.DailyGenerated = map[string]int{}
	}
	s.TotalGenerated++
	s.TotalDays += days
	s.DailyGenerated[now.Format(DayLayout)]++
}

func (s *CodeStats) RecordClaimed(firstClaim bool, now time.Time) {
	if s.DailyClaimed == nil {
		s.DailyClaimed = map[string]int{}
	}
	s.TotalClaimed++
	s.DailyClaimed[now.Format(DayLayout)]++
	if firstClaim {
		s.UniqueUsersClaimed++
	}
}

// Document is the whole persisted ledger. Rate windows and admin quotas are
// kept by the limit store and are not part of it.
type Document struct {
	Users       map[int64]*User        `json:"users"`
	Settings    Settings               `json:"settings"`
	RedeemCodes map[string]*RedeemCode `json:"redeem_codes"`
	Templates   map[string]*Template   `json:"code_templates"`
	Stats       CodeStats              `json:"code_stats"`
}

func NewDocument() *Document {
	d := &Document{Settings: DefaultSettings()}
	d.Normalize()
	return d
}

// Normalize fills maps and settings left empty by an older or partial file.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = map[int64]*User{}
	}
	if d.RedeemCodes == nil {
		d.RedeemCodes = map[string]*RedeemCode{}
	}
	if d.Templates == nil {
		d.Templates = map[string]*Template{}
	}
	if d.Stats.DailyGenerated == nil {
		d.Stats.DailyGenerated = map[string]int{}
	}
	if d.Stats.DailyClaimed == nil {
		d.Stats.DailyClaimed = map[string]int{}
	}
	def := DefaultSettings()
	if d.Settings.MaxDaysPerCode <= 0 {
		d.Settings.MaxDaysPerCode = def.MaxDaysPerCode
	}
	if d.Settings.MaxCodesPerUser <= 0 {
		d.Settings.MaxCodesPerUser = def.MaxCodesPerUser
	}
	if d.Settings.AdminCodeGenLimit <= 0 {
		d.Settings.AdminCodeGenLimit = def.AdminCodeGenLimit
	}
	if len(d.Settings.CodeCategories) == 0 {
		d.Settings.CodeCategories = def.CodeCategories
	}
	if d.Settings.Support == "" {
		d.Settings.Support = def.Support
	}
	if d.Settings.Channels == nil {
		d.Settings.Channels = []string{}
	}
	if d.Settings.ForceJoinFor == nil {
		d.Settings.ForceJoinFor = []Action{}
	}
}

// Clone deep-copies the document so a failed update can be discarded.
func (d *Document) Clone() *Document {
	cp := &Document{
		Users:       make(map[int64]*User, len(d.Users)),
		Settings:    d.Settings.clone(),
		RedeemCodes: make(map[string]*RedeemCode, len(d.RedeemCodes)),
		Templates:   make(map[string]*Template, len(d.Templates)),
		Stats:       d.Stats,
	}
	for id, u := range d.Users {
		cp.Users[id] = u.clone()
	}
	for c, rc := range d.RedeemCodes {
		cp.RedeemCodes[c] = rc.clone()
	}
	for id, t := range d.Templates {
		cp.Templates[id] = t.clone()
	}
	cp.Stats.DailyGenerated = maps.Clone(d.Stats.DailyGenerated)
	cp.Stats.DailyClaimed = maps.Clone(d.Stats.DailyClaimed)
	return cp
}

// EnsureUser returns the user, creating it with default fields if missing.
func (d *Document) EnsureUser(id int64, name string, now time.Time) (*User, bool, error) {
	if u, ok := d.Users[id]; ok {
		return u, false, nil
	}
	u, err := NewUser(id, name, now)
	if err != nil {
		return nil, false, err
	}
	d.Users[id] = u
	return u, true, nil
}
