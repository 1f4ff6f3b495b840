//go:build !integration

package wizard_test

import (
	"context"
	"errors"
	"testing"

	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
)

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("should report when there is no session", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.Handle(ctx, owner.ID, owner, text("hello"))

		if !errors.Is(err, domain.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("should ignore input from another user in the same chat", func(t *testing.T) {
		f := newFixture(t)
		f.begin(t, owner, model.FlowGenerateCode)

		_, err := f.engine.Handle(ctx, owner.ID, user, press(wizard.ActionCodeType, string(model.CodeKindSingle)))

		if !errors.Is(err, domain.ErrNoSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
		if s := f.session(t, owner); s == nil || s.State != model.StateChooseCodeType {
			t.Errorf("expected the owner's session untouched, got %+v", s)
		}
	})

	t.Run("should discard the session on cancel without side effects", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.begin(t, owner, model.FlowGenerateCode)
		f.drive(t, owner, press(wizard.ActionCodeType, string(model.CodeKindBulk)), text("3"), text("Promo"), text("5"))

		// --- Act ---
		tr := f.send(t, owner, wizard.ButtonEvent(wizard.Button{Action: wizard.ActionCancel}))

		// --- Assert ---
		if _, ok := replyWith(tr, "wizard_cancelled"); !tr.Done || !ok {
			t.Fatalf("expected cancellation, got %v", replyTexts(tr))
		}
		if active, _ := f.engine.Active(ctx, owner.ID); active {
			t.Error("expected no active session")
		}
		if n := len(f.codes(t)); n != 0 {
			t.Errorf("expected no codes, got %d", n)
		}
	})

	t.Run("should restart when a flow begins again", func(t *testing.T) {
		f := newFixture(t)
		f.begin(t, owner, model.FlowGenerateCode)
		f.drive(t, owner, press(wizard.ActionCodeType, string(model.CodeKindMulti)))

		tr := f.begin(t, owner, model.FlowDefineTemplate)

		s := f.session(t, owner)
		if tr.Next != model.StateTemplateName || s.Flow != model.FlowDefineTemplate || s.Draft.Kind != "" {
			t.Fatalf("expected a fresh template session, got %+v", s)
		}
	})

	t.Run("should keep prompting with a cancel button", func(t *testing.T) {
		f := newFixture(t)

		tr := f.begin(t, owner, model.FlowGenerateCode)

		rows := tr.Replies[len(tr.Replies)-1].Rows
		last := rows[len(rows)-1]
		if len(last) != 1 || last[0].Button.Action != wizard.ActionCancel {
			t.Errorf("expected a trailing cancel row, got %+v", last)
		}
	})
}

func TestButtonCodec(t *testing.T) {
	t.Run("should round trip values that contain separators", func(t *testing.T) {
		in := wizard.Button{Action: wizard.ActionChannel, Value: "a:b"}

		data := wizard.EncodeButton(in)
		out, ok := wizard.DecodeButton(data)

		if !ok || out != in {
			t.Fatalf("expected %+v, got %+v (ok=%v) from %q", in, out, ok, data)
		}
		if !wizard.IsWizardCallback(data) {
			t.Error("expected the data to be recognised")
		}
	})

	t.Run("should reject foreign callback data", func(t *testing.T) {
		for _, data := range []string{"", "wz", "wz::x", "other:type:single"} {
			if _, ok := wizard.DecodeButton(data); ok {
				t.Errorf("expected %q rejected", data)
			}
		}
	})

	t.Run("should render url buttons without callback data", func(t *testing.T) {
		r := wizard.Reply{Rows: [][]wizard.ReplyButton{{
			{Label: "open", URL: "https://t.me/x"},
			{Label: "pick", Button: wizard.Button{Action: wizard.ActionTemplate, Value: "01h"}},
		}}}

		rows := r.InlineRows()

		if rows[0][0].Data != "" || rows[0][0].URL != "https://t.me/x" {
			t.Errorf("unexpected url button: %+v", rows[0][0])
		}
		if rows[0][1].Data != "wz:tpl:01h" {
			t.Errorf("unexpected callback data: %q", rows[0][1].Data)
		}
	})
}
