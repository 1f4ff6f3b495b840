package wizard

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
)

func (m *Machine) channelPrompt(state State, set model.Settings) Reply {
	switch state {
	case model.StateRemoveChannel:
		rows := lo.Map(set.Channels, func(ch string, _ int) []ReplyButton {
			return []ReplyButton{btn("@"+ch, ActionChannel, ch)}
		})
		return msg(m.t("channel_pick_remove"), rows...)
	case model.StateToggleForceJoin:
		rows := lo.Map(model.GatedActions, func(a model.Action, _ int) []ReplyButton {
			mark := m.t("force_off")
			if set.IsForced(a) {
				mark = m.t("force_on")
			}
			return []ReplyButton{btn(string(a)+": "+mark, ActionToggle, string(a))}
		})
		return msg(m.t("force_join_menu"), rows...)
	}

	channels := m.t("channels_none")
	if len(set.Channels) > 0 {
		channels = "@" + strings.Join(set.Channels, ", @")
	}
	forced := lo.Map(set.ForceJoinFor, func(a model.Action, _ int) string { return string(a) })
	return msg(m.t("channel_menu", channels, strings.Join(forced, ", ")),
		[]ReplyButton{
			btn(m.t("btn_add_channel"), ActionMenu, MenuAdd),
			btn(m.t("btn_remove_channel"), ActionMenu, MenuRemove),
		},
		[]ReplyButton{
			btn(m.t("btn_force_join"), ActionMenu, MenuForce),
			btn(m.t("btn_back"), ActionMenu, MenuBack),
		},
	)
}

func (m *Machine) stepChannelMenu(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionMenu)
	if err != nil {
		return Transition{}, err
	}
	switch b.Value {
	case MenuAdd:
		return m.advance(ctx, sess, model.StateAddChannel)
	case MenuRemove:
		set, err := m.d.Settings.Get(ctx)
		if err != nil {
			return Transition{}, err
		}
		if len(set.Channels) == 0 {
			return m.advance(ctx, sess, model.StateChannelMenu, msg(m.t("channels_none")))
		}
		return m.advance(ctx, sess, model.StateRemoveChannel)
	case MenuForce:
		return m.advance(ctx, sess, model.StateToggleForceJoin)
	case MenuBack:
		return done(msg(m.t("wizard_closed"))), nil
	}
	return Transition{}, &domain.ValidationError{Field: "choice", Reason: "please use the buttons"}
}

func (m *Machine) stepAddChannel(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	name, err := textOf(ev, "channel")
	if err != nil {
		return Transition{}, err
	}
	added, err := m.d.Settings.AddChannel(ctx, name)
	var ce *domain.CollaboratorError
	if errors.As(err, &ce) {
		return m.advance(ctx, sess, model.StateAddChannel, msg(m.t("channel_verify_failed", ce.Diagnostic())))
	}
	if err != nil {
		return Transition{}, err
	}
	name = model.NormalizeChannel(name)
	if !added {
		return done(msg(m.t("channel_exists", name))), nil
	}
	return done(msg(m.t("channel_added", name))), nil
}

func (m *Machine) stepRemoveChannel(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionChannel)
	if err != nil {
		return Transition{}, err
	}
	removed, err := m.d.Settings.RemoveChannel(ctx, b.Value)
	if err != nil {
		return Transition{}, err
	}
	note := m.t("channel_removed", b.Value)
	if !removed {
		note = m.t("channel_missing", b.Value)
	}
	return m.advance(ctx, sess, model.StateChannelMenu, msg(note))
}

func (m *Machine) stepToggleForceJoin(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionToggle)
	if err != nil {
		return Transition{}, err
	}
	action := model.Action(b.Value)
	enforced, err := m.d.Settings.ToggleForceJoin(ctx, action)
	if err != nil {
		return Transition{}, err
	}
	key := "force_join_disabled"
	if enforced {
		key = "force_join_enabled"
	}
	return m.advance(ctx, sess, model.StateChannelMenu, msg(m.t(key, string(action))))
}
