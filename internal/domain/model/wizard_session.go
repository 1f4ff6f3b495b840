package model

import "time"

// WizardFlow names a multi-step conversation.
type WizardFlow string

const (
	FlowGenerateCode    WizardFlow = "generate_code"
	FlowDefineTemplate  WizardFlow = "define_template"
	FlowManageTemplates WizardFlow = "manage_templates"
	FlowManageChannels  WizardFlow = "manage_channels"
	FlowRedeem          WizardFlow = "redeem"
	FlowClone           WizardFlow = "clone"
	FlowBroadcast       WizardFlow = "broadcast"
)

// WizardState is the step a conversation is waiting on.
type WizardState string

const (
	StateChooseCodeType       WizardState = "choose_code_type"
	StateEnterLimit           WizardState = "enter_limit"
	StateEnterBulkCount       WizardState = "enter_bulk_count"
	StateChooseName           WizardState = "choose_name"
	StateChooseCategory       WizardState = "choose_category"
	StateEnterDays            WizardState = "enter_days"
	StateChooseActivation     WizardState = "choose_activation"
	StateEnterActivationDelay WizardState = "enter_activation_delay"
	StateChooseExpiry         WizardState = "choose_expiry"
	StatePickTemplate         WizardState = "pick_template"

	StateTemplateName   WizardState = "template_name"
	StateTemplateDays   WizardState = "template_days"
	StateTemplateLimit  WizardState = "template_limit"
	StateTemplateExpiry WizardState = "template_expiry"
	StateTemplateMenu   WizardState = "template_menu"

	StateChannelMenu     WizardState = "channel_menu"
	StateAddChannel      WizardState = "add_channel"
	StateRemoveChannel   WizardState = "remove_channel"
	StateToggleForceJoin WizardState = "toggle_force_join"

	StateEnterRedeemCode WizardState = "enter_redeem_code"
	StateEnterPackLink   WizardState = "enter_pack_link"
	StateEnterPackTitle  WizardState = "enter_pack_title"
	StateEnterBroadcast  WizardState = "enter_broadcast"
)

type CodeKind string

const (
	CodeKindSingle    CodeKind = "single"
	CodeKindMulti     CodeKind = "multi"
	CodeKindUnlimited CodeKind = "unlimited"
	CodeKindBulk      CodeKind = "bulk"
	CodeKindTemplate  CodeKind = "template"
)

// WizardDraft collects the answers given so far.
type WizardDraft struct {
	Kind           CodeKind   `json:"kind,omitempty"`
	Name           string     `json:"name,omitempty"`
	Category       string     `json:"category,omitempty"`
	Days           int        `json:"days,omitempty"`
	Limit          UsageLimit `json:"limit"`
	BulkCount      int        `json:"bulk_count,omitempty"`
	ActivateInDays *int       `json:"activate_in_days,omitempty"`
	ExpiresInDays  int        `json:"expires_in_days,omitempty"`
	PackName       string     `json:"pack_name,omitempty"`
	PackTitle      string     `json:"pack_title,omitempty"`
}

// WizardSession is one chat's in-flight conversation. It is never part of
// the ledger document.
type WizardSession struct {
	ChatID    int64       `json:"chat_id"`
	ActorID   int64       `json:"actor_id"`
	ActorName string      `json:"actor_name"`
	Flow      WizardFlow  `json:"flow"`
	State     WizardState `json:"state"`
	Draft     WizardDraft `json:"draft"`
	UpdatedAt time.Time   `json:"updated_at"`
}
