package wizard

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/usecase"
)

// Template limits at or above this are stored as unlimited.
const unlimitedThreshold = 999

func (m *Machine) enterManageTemplates(ctx context.Context, sess *model.WizardSession) (Transition, error) {
	if sess.ActorID != m.d.OwnerID {
		return done(msg(m.t("not_authorized"))), nil
	}
	list, err := m.d.Ledger.ListTemplates(ctx)
	if err != nil {
		return Transition{}, err
	}
	if len(list) == 0 {
		return done(msg(m.t("templates_empty"))), nil
	}
	return m.advance(ctx, sess, model.StateTemplateMenu)
}

func (m *Machine) stepTemplateName(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	name, err := textOf(ev, "name")
	if err != nil {
		return Transition{}, err
	}
	sess.Draft = model.WizardDraft{Kind: model.CodeKindTemplate, Name: name}
	return m.advance(ctx, sess, model.StateTemplateDays)
}

func (m *Machine) stepTemplateDays(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	days, err := intIn(ev, "days", 1, 0)
	if err != nil {
		return Transition{}, err
	}
	sess.Draft.Days = days
	return m.advance(ctx, sess, model.StateTemplateLimit)
}

func (m *Machine) stepTemplateLimit(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	s, err := textOf(ev, "limit")
	if err != nil {
		return Transition{}, err
	}
	if strings.EqualFold(s, "unlimited") {
		sess.Draft.Limit = model.Unlimited()
		return m.advance(ctx, sess, model.StateTemplateExpiry)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return Transition{}, &domain.ValidationError{Field: "limit", Reason: "must be a positive number or \"unlimited\""}
	}
	if n >= unlimitedThreshold {
		sess.Draft.Limit = model.Unlimited()
	} else {
		sess.Draft.Limit = model.Capped(n)
	}
	return m.advance(ctx, sess, model.StateTemplateExpiry)
}

func (m *Machine) stepTemplateExpiry(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	days, err := intIn(ev, "expiry", 1, 0)
	if err != nil {
		return Transition{}, err
	}
	dr := sess.Draft
	t, err := m.d.Ledger.CreateTemplate(ctx, usecase.TemplateParams{
		Name:          dr.Name,
		Category:      model.CategoryTemplate,
		Days:          dr.Days,
		Limit:         dr.Limit,
		ExpiresInDays: days,
	})
	if err != nil {
		return Transition{}, err
	}
	return done(msg(m.t("template_created", t.Name, t.Days, t.Limit.String(), t.ExpiresInDays))), nil
}

func (m *Machine) stepTemplateMenu(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	b, err := buttonOf(ev, ActionView, ActionDelete)
	if err != nil {
		return Transition{}, err
	}
	if b.Action == ActionDelete {
		t, err := m.d.Ledger.DeleteTemplate(ctx, b.Value)
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return done(msg(m.t("template_not_found"))), nil
		}
		if err != nil {
			return Transition{}, err
		}
		return done(msg(m.t("template_deleted", t.Name))), nil
	}

	t, err := m.d.Ledger.GetTemplate(ctx, b.Value)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return done(msg(m.t("template_not_found"))), nil
	}
	if err != nil {
		return Transition{}, err
	}
	details := msg(
		m.t("template_details", t.Name, t.Days, t.Limit.String(), t.ExpiresInDays, t.CreatedAt.Format(model.DayLayout)),
		[]ReplyButton{btn(m.t("btn_delete"), ActionDelete, t.ID)},
		m.cancelRow(),
	)
	return stay(model.StateTemplateMenu, details), nil
}

func templateRows(list []*model.Template, action Action) [][]ReplyButton {
	rows := make([][]ReplyButton, 0, len(list))
	for _, t := range list {
		rows = append(rows, []ReplyButton{btn(t.Name+" ("+strconv.Itoa(t.Days)+"d)", action, t.ID)})
	}
	return rows
}
