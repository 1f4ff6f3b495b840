package model

import "time"

const (
	CategoryTemplate = "Template"
	CategoryBulk     = "Bulk"
)

// Template is a reusable blueprint for stamping redeem codes.
type Template struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Days           int        `json:"days"`
	Limit          UsageLimit `json:"limit"`
	Category       string     `json:"category"`
	ExpiresInDays  int        `json:"expires_in_days"`
	ActivateInDays *int       `json:"activate_in_days,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (t *Template) clone() *Template {
	cp := *t
	if t.ActivateInDays != nil {
		d := *t.ActivateInDays
		cp.ActivateInDays = &d
	}
	return &cp
}

func (t *Template) Copy() *Template { return t.clone() }
