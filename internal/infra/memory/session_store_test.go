//go:build !integration

package memory

import (
	"context"
	"testing"
	"time"

	"telegram-sticker-cloner/internal/domain/model"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := t0
	s := NewSessionStore(15*time.Minute, func() time.Time { return now })

	t.Run("should round trip a session by chat", func(t *testing.T) {
		limit := 3
		in := &model.WizardSession{ChatID: 7, State: model.StateEnterDays, Draft: model.WizardDraft{Name: "x", ActivateInDays: &limit}}
		_ = s.Save(ctx, in)
		limit = 9

		got, err := s.Get(ctx, 7)

		if err != nil || got == nil || got.State != model.StateEnterDays {
			t.Fatalf("unexpected session: %+v, %v", got, err)
		}
		if got.Draft.ActivateInDays == nil || *got.Draft.ActivateInDays != 3 {
			t.Errorf("expected the stored draft detached from the caller, got %v", got.Draft.ActivateInDays)
		}
		if other, _ := s.Get(ctx, 8); other != nil {
			t.Error("expected no session for another chat")
		}
	})

	t.Run("should expire idle sessions", func(t *testing.T) {
		_ = s.Save(ctx, &model.WizardSession{ChatID: 9})
		now = now.Add(15 * time.Minute)

		if got, _ := s.Get(ctx, 9); got != nil {
			t.Error("expected the idle session to be gone")
		}
		if n := s.Sweep(); n != 1 {
			t.Errorf("expected the remaining idle session swept, got %d", n)
		}
	})

	t.Run("should delete", func(t *testing.T) {
		_ = s.Save(ctx, &model.WizardSession{ChatID: 10})
		_ = s.Delete(ctx, 10)
		if got, _ := s.Get(ctx, 10); got != nil {
			t.Error("expected deleted session to be gone")
		}
	})

	t.Run("should count stored sessions", func(t *testing.T) {
		_ = s.Save(ctx, &model.WizardSession{ChatID: 11})
		_ = s.Save(ctx, &model.WizardSession{ChatID: 12})
		if n := s.Len(); n != 2 {
			t.Errorf("expected 2 sessions, got %d", n)
		}
	})
}
