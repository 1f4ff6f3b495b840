// Package wizard implements the multi-step chat conversations: code
// generation, template and channel management, redemption and cloning.
package wizard

import (
	"strings"

	"telegram-sticker-cloner/internal/domain/model"
)

// State aliases the persisted state enum so callers can stay in this package.
type State = model.WizardState

type EventKind int

const (
	EventText EventKind = iota
	EventButton
	EventCancel
)

// Action identifies what an inline button means to the machine.
type Action string

const (
	ActionCodeType   Action = "type"
	ActionCategory   Action = "cat"
	ActionCustom     Action = "custom"
	ActionActivation Action = "act"
	ActionExpiry     Action = "exp"
	ActionTemplate   Action = "tpl"
	ActionView       Action = "view"
	ActionDelete     Action = "del"
	ActionMenu       Action = "menu"
	ActionChannel    Action = "chan"
	ActionToggle     Action = "toggle"
	ActionCancel     Action = "cancel"
)

// Values carried by ActionActivation and ActionMenu buttons.
const (
	ActivateNow      = "now"
	ActivateSchedule = "schedule"

	MenuAdd    = "add"
	MenuRemove = "remove"
	MenuForce  = "force"
	MenuBack   = "back"
)

type Button struct {
	Action Action
	Value  string
}

// Event is one inbound interaction: free text, a button press or a cancel.
type Event struct {
	Kind   EventKind
	Text   string
	Button Button
}

func TextEvent(text string) Event { return Event{Kind: EventText, Text: text} }

func ButtonEvent(b Button) Event {
	if b.Action == ActionCancel {
		return CancelEvent()
	}
	return Event{Kind: EventButton, Button: b}
}

func CancelEvent() Event { return Event{Kind: EventCancel} }

const callbackPrefix = "wz"

// EncodeButton renders b as Telegram callback data. Values may contain ':'.
func EncodeButton(b Button) string {
	return callbackPrefix + ":" + string(b.Action) + ":" + b.Value
}

// DecodeButton parses callback data produced by EncodeButton.
func DecodeButton(data string) (Button, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != callbackPrefix || parts[1] == "" {
		return Button{}, false
	}
	return Button{Action: Action(parts[1]), Value: parts[2]}, true
}

// IsWizardCallback reports whether data belongs to the wizard.
func IsWizardCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix+":")
}
