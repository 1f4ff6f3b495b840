package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/metrics"
	"telegram-sticker-cloner/internal/usecase"
)

const (
	defaultBulkMax  = 100
	defaultDelayMax = 365
)

// Translator renders a message key. *i18n.Translator satisfies it.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Deps are the collaborators a Machine drives. Cloner and Broadcast may be
// nil when the corresponding flows are not offered.
type Deps struct {
	Ledger    usecase.LedgerUseCase
	Settings  usecase.SettingsUseCase
	Users     usecase.UserUseCase
	Policy    usecase.AccessPolicy
	Limiter   usecase.RateLimiter
	Cloner    adapter.StickerCloner
	Broadcast usecase.BroadcastUseCase
	Text      Translator

	OwnerID  int64
	IsAdmin  func(userID int64) bool
	BulkMax  int
	DelayMax int
	Logger   *zerolog.Logger
}

type stepFunc func(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error)

// Machine is the transition function of every wizard. It keeps no state of
// its own; sessions are owned by the Engine.
type Machine struct {
	d     Deps
	log   *zerolog.Logger
	steps map[State]stepFunc
}

func NewMachine(d Deps) *Machine {
	if d.BulkMax <= 0 {
		d.BulkMax = defaultBulkMax
	}
	if d.DelayMax <= 0 {
		d.DelayMax = defaultDelayMax
	}
	if d.IsAdmin == nil {
		d.IsAdmin = func(int64) bool { return false }
	}
	l := d.Logger.With().Str("component", "wizard").Logger()
	m := &Machine{d: d, log: &l}
	m.steps = map[State]stepFunc{
		model.StateChooseCodeType:       m.stepChooseCodeType,
		model.StateEnterLimit:           m.stepEnterLimit,
		model.StateEnterBulkCount:       m.stepEnterBulkCount,
		model.StateChooseName:           m.stepChooseName,
		model.StateChooseCategory:       m.stepChooseCategory,
		model.StateEnterDays:            m.stepEnterDays,
		model.StateChooseActivation:     m.stepChooseActivation,
		model.StateEnterActivationDelay: m.stepEnterActivationDelay,
		model.StateChooseExpiry:         m.stepChooseExpiry,
		model.StatePickTemplate:         m.stepPickTemplate,

		model.StateTemplateName:   m.stepTemplateName,
		model.StateTemplateDays:   m.stepTemplateDays,
		model.StateTemplateLimit:  m.stepTemplateLimit,
		model.StateTemplateExpiry: m.stepTemplateExpiry,
		model.StateTemplateMenu:   m.stepTemplateMenu,

		model.StateChannelMenu:     m.stepChannelMenu,
		model.StateAddChannel:      m.stepAddChannel,
		model.StateRemoveChannel:   m.stepRemoveChannel,
		model.StateToggleForceJoin: m.stepToggleForceJoin,

		model.StateEnterRedeemCode: m.stepEnterRedeemCode,
		model.StateEnterPackLink:   m.stepEnterPackLink,
		model.StateEnterPackTitle:  m.stepEnterPackTitle,
		model.StateEnterBroadcast:  m.stepEnterBroadcast,
	}
	return m
}

// Enter runs the entry checks of sess.Flow and returns the first prompt, or
// a terminal transition carrying the refusal.
func (m *Machine) Enter(ctx context.Context, sess *model.WizardSession) (Transition, error) {
	var (
		tr  Transition
		err error
	)
	switch sess.Flow {
	case model.FlowGenerateCode:
		tr, err = m.enterGenerateCode(ctx, sess)
	case model.FlowDefineTemplate:
		tr, err = m.ownerOnly(ctx, sess, model.StateTemplateName)
	case model.FlowManageTemplates:
		tr, err = m.enterManageTemplates(ctx, sess)
	case model.FlowManageChannels:
		tr, err = m.ownerOnly(ctx, sess, model.StateChannelMenu)
	case model.FlowBroadcast:
		tr, err = m.ownerOnly(ctx, sess, model.StateEnterBroadcast)
	case model.FlowRedeem:
		tr, err = m.gated(ctx, sess, model.ActionRedeem, model.StateEnterRedeemCode)
	case model.FlowClone:
		tr, err = m.gated(ctx, sess, model.ActionClone, model.StateEnterPackLink)
	default:
		return Transition{}, fmt.Errorf("enter wizard flow %q: %w", sess.Flow, domain.ErrInvalidArgument)
	}
	if err != nil {
		metrics.IncWizardTransition(string(sess.Flow), "error")
		return done(m.failure()), err
	}
	result := "advance"
	if tr.Done {
		result = "refused"
	}
	metrics.IncWizardTransition(string(sess.Flow), result)
	return tr, nil
}

// Step feeds ev to the session's current state. Invalid input leaves the
// session untouched and repeats the prompt. A non-nil error means the flow
// was aborted; the transition then carries a generic failure reply.
func (m *Machine) Step(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	state := sess.State
	if ev.Kind == EventCancel {
		metrics.IncWizardTransition(string(state), "cancel")
		return done(msg(m.t("wizard_cancelled"))), nil
	}
	step, ok := m.steps[state]
	if !ok {
		metrics.IncWizardTransition(string(state), "error")
		return done(m.failure()), fmt.Errorf("wizard state %q: %w", state, domain.ErrInvalidArgument)
	}

	saved := sess.Draft
	tr, err := step(ctx, sess, ev)

	var ve *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &ve):
		sess.Draft = saved
		metrics.IncWizardTransition(string(state), "reprompt")
		return m.reprompt(ctx, sess, state, msg(m.t("invalid_input", ve.Reason)))
	default:
		sess.Draft = saved
		metrics.IncWizardTransition(string(state), "error")
		m.log.Error().Err(err).Str("state", string(state)).Int64("chat_id", sess.ChatID).Msg("wizard step failed")
		return done(m.failure()), err
	}

	switch {
	case tr.Done:
		metrics.IncWizardTransition(string(state), "done")
	case tr.Next == state:
		metrics.IncWizardTransition(string(state), "stay")
	default:
		metrics.IncWizardTransition(string(state), "advance")
	}
	return tr, nil
}

// advance moves to state and appends its prompt after notes.
func (m *Machine) advance(ctx context.Context, sess *model.WizardSession, state State, notes ...Reply) (Transition, error) {
	p, err := m.prompt(ctx, sess, state)
	if err != nil {
		return Transition{}, err
	}
	return next(state, append(notes, p)...), nil
}

func (m *Machine) reprompt(ctx context.Context, sess *model.WizardSession, state State, notes ...Reply) (Transition, error) {
	tr, err := m.advance(ctx, sess, state, notes...)
	if err != nil {
		return done(m.failure()), err
	}
	return tr, nil
}

func (m *Machine) ownerOnly(ctx context.Context, sess *model.WizardSession, first State) (Transition, error) {
	if sess.ActorID != m.d.OwnerID {
		return done(msg(m.t("not_authorized"))), nil
	}
	return m.advance(ctx, sess, first)
}

// gated asks the access policy before a user flow starts.
func (m *Machine) gated(ctx context.Context, sess *model.WizardSession, action model.Action, first State) (Transition, error) {
	d, err := m.d.Policy.CanEnter(ctx, sess.ActorID, action)
	if err != nil {
		return Transition{}, err
	}
	switch d.Outcome {
	case usecase.AccessMustJoinChannel:
		return done(m.mustJoin(d.Channels)), nil
	case usecase.AccessRateLimited:
		return done(msg(m.t("rate_limited", d.Ceiling))), nil
	}
	return m.advance(ctx, sess, first)
}

func (m *Machine) mustJoin(channels []string) Reply {
	rows := make([][]ReplyButton, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []ReplyButton{{Label: "@" + ch, URL: "https://t.me/" + ch}})
	}
	return msg(m.t("must_join"), rows...)
}

func (m *Machine) failure() Reply { return msg(m.t("error_generic")) }

func (m *Machine) t(key string, args ...interface{}) string { return m.d.Text.T(key, args...) }

func (m *Machine) cancelRow() []ReplyButton {
	return []ReplyButton{btn(m.t("btn_cancel"), ActionCancel, "")}
}

// prompt renders the question asked in state, with a cancel row.
func (m *Machine) prompt(ctx context.Context, sess *model.WizardSession, state State) (Reply, error) {
	var r Reply
	switch state {
	case model.StateChooseCodeType:
		r = msg(m.t("gen_choose_type"),
			[]ReplyButton{
				btn(m.t("btn_single"), ActionCodeType, string(model.CodeKindSingle)),
				btn(m.t("btn_multi"), ActionCodeType, string(model.CodeKindMulti)),
			},
			[]ReplyButton{
				btn(m.t("btn_unlimited"), ActionCodeType, string(model.CodeKindUnlimited)),
				btn(m.t("btn_bulk"), ActionCodeType, string(model.CodeKindBulk)),
			},
			[]ReplyButton{btn(m.t("btn_template"), ActionCodeType, string(model.CodeKindTemplate))},
		)
	case model.StateEnterLimit:
		r = msg(m.t("gen_enter_limit"))
	case model.StateEnterBulkCount:
		r = msg(m.t("gen_enter_bulk_count", m.d.BulkMax))
	case model.StateChooseName:
		key := "gen_enter_name"
		if sess.Draft.Kind == model.CodeKindBulk {
			key = "gen_enter_bulk_name"
		}
		r = msg(m.t(key))
	case model.StateChooseCategory:
		set, err := m.d.Settings.Get(ctx)
		if err != nil {
			return Reply{}, err
		}
		r = msg(m.t("gen_choose_category"), categoryRows(set.CodeCategories)...)
		r.Rows = append(r.Rows, []ReplyButton{btn(m.t("btn_custom"), ActionCustom, "")})
	case model.StateEnterDays:
		set, err := m.d.Settings.Get(ctx)
		if err != nil {
			return Reply{}, err
		}
		r = msg(m.t("gen_enter_days", set.MaxDaysPerCode))
	case model.StateChooseActivation:
		r = msg(m.t("gen_choose_activation"), []ReplyButton{
			btn(m.t("btn_activate_now"), ActionActivation, ActivateNow),
			btn(m.t("btn_activate_schedule"), ActionActivation, ActivateSchedule),
		})
	case model.StateEnterActivationDelay:
		r = msg(m.t("gen_enter_delay", m.d.DelayMax))
	case model.StateChooseExpiry:
		r = msg(m.t("gen_choose_expiry"),
			[]ReplyButton{
				btn(m.t("btn_days", 7), ActionExpiry, "7"),
				btn(m.t("btn_days", 30), ActionExpiry, "30"),
				btn(m.t("btn_days", 90), ActionExpiry, "90"),
			},
			[]ReplyButton{btn(m.t("btn_custom"), ActionCustom, "")},
		)
	case model.StatePickTemplate, model.StateTemplateMenu:
		list, err := m.d.Ledger.ListTemplates(ctx)
		if err != nil {
			return Reply{}, err
		}
		key, action := "gen_pick_template", ActionTemplate
		if state == model.StateTemplateMenu {
			key, action = "tpl_menu", ActionView
		}
		r = msg(m.t(key), templateRows(list, action)...)
	case model.StateTemplateName:
		r = msg(m.t("tpl_enter_name"))
	case model.StateTemplateDays:
		r = msg(m.t("tpl_enter_days"))
	case model.StateTemplateLimit:
		r = msg(m.t("tpl_enter_limit"))
	case model.StateTemplateExpiry:
		r = msg(m.t("tpl_enter_expiry"))
	case model.StateChannelMenu, model.StateRemoveChannel, model.StateToggleForceJoin:
		set, err := m.d.Settings.Get(ctx)
		if err != nil {
			return Reply{}, err
		}
		r = m.channelPrompt(state, set)
	case model.StateAddChannel:
		r = msg(m.t("channel_enter_name"))
	case model.StateEnterRedeemCode:
		r = msg(m.t("redeem_enter_code"))
	case model.StateEnterPackLink:
		r = msg(m.t("clone_enter_link"))
	case model.StateEnterPackTitle:
		r = msg(m.t("clone_enter_title", sess.Draft.PackName))
	case model.StateEnterBroadcast:
		r = msg(m.t("broadcast_enter"))
	default:
		return Reply{}, fmt.Errorf("prompt for %q: %w", state, domain.ErrInvalidArgument)
	}
	r.Rows = append(r.Rows, m.cancelRow())
	return r, nil
}

// --- input helpers ---

func textOf(ev Event, field string) (string, error) {
	if ev.Kind != EventText {
		return "", &domain.ValidationError{Field: field, Reason: "please type a value"}
	}
	s := strings.TrimSpace(ev.Text)
	if s == "" {
		return "", &domain.ValidationError{Field: field, Reason: "must not be empty"}
	}
	return s, nil
}

// intIn parses a whole number in [lo, hi]. hi <= 0 means no upper bound.
func intIn(ev Event, field string, lo, hi int) (int, error) {
	s, err := textOf(ev, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Reason: "must be a whole number"}
	}
	if n < lo || (hi > 0 && n > hi) {
		reason := fmt.Sprintf("must be at least %d", lo)
		if hi > 0 {
			reason = fmt.Sprintf("must be between %d and %d", lo, hi)
		}
		return 0, &domain.ValidationError{Field: field, Reason: reason}
	}
	return n, nil
}

func buttonOf(ev Event, actions ...Action) (Button, error) {
	if ev.Kind == EventButton {
		for _, a := range actions {
			if ev.Button.Action == a {
				return ev.Button, nil
			}
		}
	}
	return Button{}, &domain.ValidationError{Field: "choice", Reason: "please use the buttons"}
}
