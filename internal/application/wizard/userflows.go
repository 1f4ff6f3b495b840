package wizard

import (
	"context"
	"errors"
	"regexp"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/infra/metrics"
)

var packLinkRe = regexp.MustCompile(`^https?://t\.me/addstickers/([A-Za-z0-9_]+)$`)

const timeLayout = "2006-01-02 15:04"

func (m *Machine) stepEnterRedeemCode(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	code, err := textOf(ev, "code")
	if err != nil {
		return Transition{}, err
	}
	r, err := m.d.Ledger.Redeem(ctx, code, sess.ActorID, sess.ActorName)
	var ee *domain.EntitlementError
	if errors.As(err, &ee) {
		return done(msg(m.entitlementText(ee))), nil
	}
	if err != nil {
		return Transition{}, err
	}
	text := m.t("redeem_success", r.Name, r.Days, r.ExpiresAt.Format(timeLayout))
	if !r.Unlimited {
		text += "\n" + m.t("redeem_remaining", r.Remaining)
	}
	return done(msg(text)), nil
}

func (m *Machine) entitlementText(e *domain.EntitlementError) string {
	switch {
	case errors.Is(e, domain.ErrCodeNotFound):
		return m.t("redeem_not_found")
	case errors.Is(e, domain.ErrCodeNotYetActive):
		return m.t("redeem_not_active", e.ActivateAt.Format(timeLayout))
	case errors.Is(e, domain.ErrCodeExhausted):
		return m.t("redeem_exhausted", e.Used, e.Limit)
	case errors.Is(e, domain.ErrAlreadyClaimed):
		return m.t("redeem_already_claimed")
	case errors.Is(e, domain.ErrCodeExpired):
		return m.t("redeem_expired", e.ExpiresAt.Format(timeLayout))
	case errors.Is(e, domain.ErrUserQuotaExceeded):
		return m.t("redeem_quota", e.Claimed, e.Max)
	}
	return m.t("error_generic")
}

func (m *Machine) stepEnterPackLink(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	link, err := textOf(ev, "link")
	if err != nil {
		return Transition{}, err
	}
	match := packLinkRe.FindStringSubmatch(link)
	if match == nil {
		return Transition{}, &domain.ValidationError{Field: "link", Reason: "expected https://t.me/addstickers/<name>"}
	}
	if m.d.Cloner == nil {
		return done(msg(m.t("clone_unavailable"))), nil
	}
	pack, err := m.d.Cloner.PackInfo(ctx, match[1])
	if err != nil {
		return m.advance(ctx, sess, model.StateEnterPackLink, msg(m.t("clone_lookup_failed", diagnostic("sticker pack lookup", err))))
	}
	sess.Draft.PackName = pack.Name
	return m.advance(ctx, sess, model.StateEnterPackTitle, msg(m.t("clone_pack_found", pack.Title, pack.Count)))
}

// stepEnterPackTitle clones the pack. The user's counters change only after
// the clone went through.
func (m *Machine) stepEnterPackTitle(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	title, err := textOf(ev, "title")
	if err != nil {
		return Transition{}, err
	}
	res, err := m.d.Cloner.Clone(ctx, sess.ActorID, sess.Draft.PackName, title)
	if err != nil {
		metrics.IncClone("failed")
		m.log.Warn().Err(err).Int64("user_id", sess.ActorID).Str("pack", sess.Draft.PackName).Msg("clone failed")
		return done(msg(m.t("clone_failed", diagnostic("clone sticker pack", err)))), nil
	}
	metrics.IncClone("ok")
	if _, err := m.d.Users.RecordClone(ctx, sess.ActorID, sess.ActorName); err != nil {
		return Transition{}, err
	}
	return done(msg(m.t("clone_done", res.Title, res.Added, res.Skipped),
		[]ReplyButton{{Label: m.t("btn_open_pack"), URL: res.URL}},
	)), nil
}

func (m *Machine) stepEnterBroadcast(ctx context.Context, sess *model.WizardSession, ev Event) (Transition, error) {
	text, err := textOf(ev, "message")
	if err != nil {
		return Transition{}, err
	}
	if m.d.Broadcast == nil {
		return done(msg(m.t("broadcast_unavailable"))), nil
	}
	n, err := m.d.Broadcast.BroadcastMessage(ctx, sess.ActorID, text)
	if err != nil {
		return Transition{}, err
	}
	return done(msg(m.t("broadcast_queued", n))), nil
}

func diagnostic(op string, err error) string {
	var ce *domain.CollaboratorError
	if !errors.As(err, &ce) {
		ce = &domain.CollaboratorError{Op: op, Err: err}
	}
	return ce.Diagnostic()
}
