//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/usecase"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("should allow 3 clones per rolling hour for normal users", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		const user = 500

		// --- Act & Assert ---
		for i := 0; i < 3; i++ {
			if ok, err := f.limiter.Allow(ctx, user, model.ActionClone); err != nil || !ok {
				t.Fatalf("clone %d: expected allowed, got %v, %v", i+1, ok, err)
			}
			f.clock.Advance(10 * time.Minute)
		}
		if ok, _ := f.limiter.Allow(ctx, user, model.ActionClone); ok {
			t.Fatal("expected the 4th clone within the hour to be rejected")
		}

		// the first stamp is at baseTime; it ages out exactly one hour later
		f.clock.Set(baseTime.Add(time.Hour - time.Second))
		if ok, _ := f.limiter.Allow(ctx, user, model.ActionClone); ok {
			t.Fatal("expected rejection one second before the oldest stamp ages out")
		}
		f.clock.Set(baseTime.Add(time.Hour))
		if ok, _ := f.limiter.Allow(ctx, user, model.ActionClone); !ok {
			t.Fatal("expected a clone 3600s after the oldest stamp")
		}
	})

	t.Run("should give premium users the higher clone ceiling", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		rc := f.mustCreate(t, usecase.CodeParams{Name: "p", Days: 5, Limit: model.Capped(1), ExpiresInDays: 5})
		if _, err := f.ledger.Redeem(ctx, rc.Code, 600, "prem"); err != nil {
			t.Fatalf("Redeem failed: %v", err)
		}

		// --- Act ---
		allowed := 0
		for i := 0; i < 12; i++ {
			if ok, _ := f.limiter.Allow(ctx, 600, model.ActionClone); ok {
				allowed++
			}
		}

		// --- Assert ---
		if allowed != 10 {
			t.Errorf("expected 10 premium clones, got %d", allowed)
		}
		if c, _ := f.limiter.Ceiling(ctx, 600, model.ActionClone); c != 10 {
			t.Errorf("expected premium ceiling 10, got %d", c)
		}
	})

	t.Run("should keep actions and users in separate windows", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 3; i++ {
			_, _ = f.limiter.Allow(ctx, 700, model.ActionClone)
		}

		if ok, _ := f.limiter.Allow(ctx, 700, model.ActionOther); !ok {
			t.Error("expected other actions to have their own window")
		}
		if ok, _ := f.limiter.Allow(ctx, 701, model.ActionClone); !ok {
			t.Error("expected another user to have their own window")
		}
	})

	t.Run("should refuse redeem attempts once the claim quota is used up", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		_ = f.store.Update(ctx, "test", func(doc *model.Document) error {
			doc.Settings.MaxCodesPerUser = 1
			return nil
		})
		rc := f.mustCreate(t, usecase.CodeParams{Name: "q", Days: 1, Limit: model.Unlimited(), ExpiresInDays: 5})
		_, _ = f.ledger.Redeem(ctx, rc.Code, 800, "u")

		// --- Act ---
		ok, err := f.limiter.Allow(ctx, 800, model.ActionRedeem)

		// --- Assert ---
		if err != nil || ok {
			t.Fatalf("expected quota refusal, got %v, %v", ok, err)
		}
	})

	t.Run("should always allow the owner without charging", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 50; i++ {
			if ok, _ := f.limiter.Allow(ctx, testOwnerID, model.ActionClone); !ok {
				t.Fatalf("owner call %d refused", i+1)
			}
		}
		if removed := f.limits.Sweep(baseTime); removed != 0 {
			t.Errorf("expected no keys recorded for the owner, swept %d", removed)
		}
	})
}

func TestRateLimiter_AllowAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("should cap an admin per day and reset on the next day", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		_ = f.store.Update(ctx, "test", func(doc *model.Document) error {
			doc.Settings.AdminCodeGenLimit = 2
			return nil
		})

		// --- Act & Assert ---
		for i := 0; i < 2; i++ {
			if ok, _ := f.limiter.AllowAdmin(ctx, 42, model.ActionCodeGen); !ok {
				t.Fatalf("call %d: expected allowed", i+1)
			}
		}
		if ok, _ := f.limiter.AllowAdmin(ctx, 42, model.ActionCodeGen); ok {
			t.Fatal("expected the daily quota to be exhausted")
		}
		if ok, _ := f.limiter.AllowAdmin(ctx, 43, model.ActionCodeGen); !ok {
			t.Error("expected another admin to have their own quota")
		}
		f.clock.Advance(24 * time.Hour)
		if ok, _ := f.limiter.AllowAdmin(ctx, 42, model.ActionCodeGen); !ok {
			t.Error("expected a fresh quota on the next day")
		}
	})

	t.Run("should not limit the owner", func(t *testing.T) {
		f := newFixture(t)
		_ = f.store.Update(ctx, "test", func(doc *model.Document) error {
			doc.Settings.AdminCodeGenLimit = 1
			return nil
		})
		for i := 0; i < 5; i++ {
			if ok, _ := f.limiter.AllowAdmin(ctx, testOwnerID, model.ActionCodeGen); !ok {
				t.Fatalf("owner call %d refused", i+1)
			}
		}
	})
}
