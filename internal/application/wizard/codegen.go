package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/usecase"
)

var expiryPresets = []int{7, 30, 90}

func (m *Machine) enterGenerateCode(ctx context.Context, sess *model.WizardSession) (Transition, error) {
	if sess.ActorID != m.d.OwnerID {
		if !m.d.IsAdmin(sess.ActorID) {
			return done(msg(m.t("not_authorized"))), nil
		}
		ok, err := m.d.Limiter.AllowAdmin(ctx, sess.ActorID, model.ActionCodeGen)
		if err != nil {
			return Transition{}, err
		}
		if !ok {
			return done(msg(m.t("admin_quota_exceeded"))), nil
		}
	}
	return m.advance(ctx, sess, model.StateChooseCodeType)
}

func (m *Machine) stepChooseCodeType(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionCodeType)
	if err != nil {
		return Transition{}, err
	}
	kind := model.CodeKind(b.Value)
	sess.Draft = model.WizardDraft{Kind: kind}
	switch kind {
	case model.CodeKindSingle:
		sess.Draft.Limit = model.Capped(1)
		return m.advance(ctx, sess, model.StateChooseName)
	case model.CodeKindUnlimited:
		sess.Draft.Limit = model.Unlimited()
		return m.advance(ctx, sess, model.StateChooseName)
	case model.CodeKindMulti:
		return m.advance(ctx, sess, model.StateEnterLimit)
	case model.CodeKindBulk:
		return m.advance(ctx, sess, model.StateEnterBulkCount)
	case model.CodeKindTemplate:
		list, err := m.d.Ledger.ListTemplates(ctx)
		if err != nil {
			return Transition{}, err
		}
		if len(list) == 0 {
			return done(msg(m.t("templates_empty"))), nil
		}
		return m.advance(ctx, sess, model.StatePickTemplate)
	}
	return Transition{}, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown code type %q", b.Value)}
}

func (m *Machine) stepEnterLimit(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	n, err := intIn(ev, "limit", 2, 0)
	if err != nil {
		return Transition{}, err
	}
	sess.Draft.Limit = model.Capped(n)
	return m.advance(ctx, sess, model.StateChooseName)
}

func (m *Machine) stepEnterBulkCount(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	n, err := intIn(ev, "count", 1, m.d.BulkMax)
	if err != nil {
		return Transition{}, err
	}
	sess.Draft.BulkCount = n
	sess.Draft.Limit = model.Capped(1)
	sess.Draft.Category = model.CategoryBulk
	return m.advance(ctx, sess, model.StateChooseName)
}

func (m *Machine) stepChooseName(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	name, err := textOf(ev, "name")
	if err != nil {
		return Transition{}, err
	}
	sess.Draft.Name = name
	if sess.Draft.Kind == model.CodeKindBulk {
		return m.advance(ctx, sess, model.StateEnterDays)
	}
	return m.advance(ctx, sess, model.StateChooseCategory)
}

func (m *Machine) stepChooseCategory(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	switch {
	case ev.Kind == EventButton && ev.Button.Action == ActionCustom:
		return stay(model.StateChooseCategory, msg(m.t("gen_enter_category"), m.cancelRow())), nil
	case ev.Kind == EventButton && ev.Button.Action == ActionCategory:
		sess.Draft.Category = ev.Button.Value
	default:
		category, err := textOf(ev, "category")
		if err != nil {
			return Transition{}, err
		}
		sess.Draft.Category = category
	}
	return m.advance(ctx, sess, model.StateEnterDays)
}

func (m *Machine) stepEnterDays(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	days, err := intIn(ev, "days", 1, 0)
	if err != nil {
		return Transition{}, err
	}
	var notes []Reply
	if sess.ActorID != m.d.OwnerID {
		set, err := m.d.Settings.Get(ctx)
		if err != nil {
			return Transition{}, err
		}
		if days > set.MaxDaysPerCode {
			days = set.MaxDaysPerCode
			notes = append(notes, msg(m.t("gen_days_clamped", days)))
		}
	}
	sess.Draft.Days = days
	if sess.Draft.Kind == model.CodeKindBulk {
		return m.advance(ctx, sess, model.StateChooseExpiry, notes...)
	}
	return m.advance(ctx, sess, model.StateChooseActivation, notes...)
}

func (m *Machine) stepChooseActivation(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionActivation)
	if err != nil {
		return Transition{}, err
	}
	switch b.Value {
	case ActivateNow:
		sess.Draft.ActivateInDays = nil
		return m.advance(ctx, sess, model.StateChooseExpiry)
	case ActivateSchedule:
		return m.advance(ctx, sess, model.StateEnterActivationDelay)
	}
	return Transition{}, &domain.ValidationError{Field: "activation", Reason: "please use the buttons"}
}

func (m *Machine) stepEnterActivationDelay(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	delay, err := intIn(ev, "delay", 0, m.d.DelayMax)
	if err != nil {
		return Transition{}, err
	}
	sess.Draft.ActivateInDays = &delay
	return m.advance(ctx, sess, model.StateChooseExpiry)
}

func (m *Machine) stepChooseExpiry(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	var days int
	switch {
	case ev.Kind == EventButton && ev.Button.Action == ActionCustom:
		return stay(model.StateChooseExpiry, msg(m.t("gen_enter_expiry"), m.cancelRow())), nil
	case ev.Kind == EventButton && ev.Button.Action == ActionExpiry:
		n, err := strconv.Atoi(ev.Button.Value)
		if err != nil || !lo.Contains(expiryPresets, n) {
			return Transition{}, &domain.ValidationError{Field: "expiry", Reason: "unknown preset"}
		}
		days = n
	default:
		n, err := intIn(ev, "expiry", 1, 0)
		if err != nil {
			return Transition{}, err
		}
		days = n
	}
	if d := sess.Draft.ActivateInDays; d != nil && days <= *d {
		return Transition{}, &domain.ValidationError{
			Field:  "expiry",
			Reason: fmt.Sprintf("must be more than the activation delay of %d days", *d),
		}
	}
	sess.Draft.ExpiresInDays = days
	return m.finishCode(ctx, sess)
}

func (m *Machine) finishCode(ctx context.Context, sess *model.WizardSession) (Transition, error) {
	dr := sess.Draft
	p := usecase.CodeParams{
		Name:           dr.Name,
		Category:       dr.Category,
		Days:           dr.Days,
		Limit:          dr.Limit,
		ExpiresInDays:  dr.ExpiresInDays,
		ActivateInDays: dr.ActivateInDays,
	}
	if dr.Kind == model.CodeKindBulk {
		return m.finishBulk(ctx, sess, p)
	}
	rc, err := m.d.Ledger.CreateCode(ctx, sess.ActorID, p)
	if err != nil {
		return Transition{}, err
	}
	return done(m.codeCreated(rc)), nil
}

// finishBulk reports whatever a bulk run created, even when it stopped early.
func (m *Machine) finishBulk(ctx context.Context, sess *model.WizardSession, p usecase.CodeParams) (Transition, error) {
	res, err := m.d.Ledger.CreateBulk(ctx, sess.ActorID, p, sess.Draft.BulkCount)
	if res == nil || len(res.Codes) == 0 {
		if err == nil {
			err = errors.New("bulk generation produced no codes")
		}
		return Transition{}, err
	}
	replies := []Reply{{
		Text: m.t("bulk_created", len(res.Codes), p.Name),
		Document: &adapter.Document{
			Name:    fmt.Sprintf("codes_%s.txt", res.CreatedAt.Format("20060102_150405")),
			Content: []byte(res.Listing()),
			Caption: m.t("bulk_caption", len(res.Codes), p.Name, p.Days, p.ExpiresInDays),
		},
	}}
	if err != nil {
		m.log.Warn().Err(err).Int("created", len(res.Codes)).Int("requested", res.Requested).Msg("bulk generation incomplete")
		replies = append(replies, msg(m.t("bulk_partial", len(res.Codes), res.Requested)))
	}
	return done(replies...), nil
}

func (m *Machine) stepPickTemplate(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionTemplate)
	if err != nil {
		return Transition{}, err
	}
	rc, err := m.d.Ledger.Instantiate(ctx, sess.ActorID, b.Value, nil)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return done(msg(m.t("template_not_found"))), nil
	}
	if err != nil {
		return Transition{}, err
	}
	return done(m.codeCreated(rc)), nil
}

func (m *Machine) codeCreated(rc *model.RedeemCode) Reply {
	text := m.t("code_created", rc.Code, rc.Name, rc.Category, rc.Days, rc.Limit.String(), rc.ExpiresAt.Format(model.DayLayout))
	if !rc.Active {
		text += "\n" + m.t("code_scheduled", rc.ActivateAt.Format("2006-01-02 15:04"))
	}
	return msg(text)
}

func categoryRows(categories []string) [][]ReplyButton {
	buttons := lo.Map(categories, func(c string, _ int) ReplyButton {
		return btn(c, ActionCategory, c)
	})
	return lo.Chunk(buttons, 2)
}
