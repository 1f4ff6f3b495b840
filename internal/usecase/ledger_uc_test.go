//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/usecase"
)

const day = 24 * time.Hour

func TestLedger_CreateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a code with expiry counted from creation", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)

		// --- Act ---
		rc := f.mustCreate(t, usecase.CodeParams{Name: "Launch", Days: 7, Limit: model.Capped(1), ExpiresInDays: 30})

		// --- Assert ---
		if len(rc.Code) != 12 || strings.ToUpper(rc.Code) != rc.Code {
			t.Errorf("expected a 12 character uppercase code, got %q", rc.Code)
		}
		if !rc.ExpiresAt.Equal(baseTime.Add(30 * day)) {
			t.Errorf("expected expiry 30 days after creation, got %v", rc.ExpiresAt)
		}
		if !rc.Active || !rc.ActivateAt.Equal(baseTime) {
			t.Errorf("expected immediate activation, got active=%v at %v", rc.Active, rc.ActivateAt)
		}
		if rc.Category != "General" {
			t.Errorf("expected default category, got %q", rc.Category)
		}
		doc := f.backend.snapshot()
		if doc.Stats.TotalGenerated != 1 || doc.Stats.TotalDays != 7 {
			t.Errorf("unexpected stats: %+v", doc.Stats)
		}
		if doc.Stats.DailyGenerated[baseTime.Format(model.DayLayout)] != 1 {
			t.Error("expected today's generated counter to be bumped")
		}
	})

	t.Run("should schedule activation and keep the code inactive", func(t *testing.T) {
		f := newFixture(t)

		rc := f.mustCreate(t, usecase.CodeParams{Name: "Later", Days: 3, Limit: model.Capped(5), ExpiresInDays: 30, ActivateInDays: intPtr(2)})

		if rc.Active {
			t.Error("expected scheduled code to be inactive")
		}
		if !rc.ActivateAt.Equal(baseTime.Add(2 * day)) {
			t.Errorf("expected activation in 2 days, got %v", rc.ActivateAt)
		}
	})

	t.Run("should reject invalid input without mutating the ledger", func(t *testing.T) {
		cases := map[string]usecase.CodeParams{
			"empty name":           {Name: " ", Days: 1, Limit: model.Capped(1), ExpiresInDays: 1},
			"zero days":            {Name: "x", Days: 0, Limit: model.Capped(1), ExpiresInDays: 1},
			"zero expiry":          {Name: "x", Days: 1, Limit: model.Capped(1), ExpiresInDays: 0},
			"invalid limit":        {Name: "x", Days: 1, ExpiresInDays: 1},
			"activation at expiry": {Name: "x", Days: 1, Limit: model.Capped(1), ExpiresInDays: 5, ActivateInDays: intPtr(5)},
		}
		for name, p := range cases {
			t.Run(name, func(t *testing.T) {
				// --- Arrange ---
				f := newFixture(t)
				saves := f.backend.saveCount()

				// --- Act ---
				_, err := f.ledger.CreateCode(ctx, testOwnerID, p)

				// --- Assert ---
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				if f.backend.saveCount() != saves {
					t.Error("expected no save for rejected input")
				}
			})
		}
	})

	t.Run("should clamp days to the cap for non-owners only", func(t *testing.T) {
		f := newFixture(t)
		p := usecase.CodeParams{Name: "Big", Days: 1000, Limit: model.Unlimited(), ExpiresInDays: 10}

		admin, err := f.ledger.CreateCode(ctx, 42, p)
		if err != nil {
			t.Fatalf("CreateCode failed: %v", err)
		}
		owner := f.mustCreate(t, p)

		if admin.Days != 365 {
			t.Errorf("expected admin code clamped to 365, got %d", admin.Days)
		}
		if owner.Days != 1000 {
			t.Errorf("expected owner code to keep 1000 days, got %d", owner.Days)
		}
	})

	t.Run("should regenerate a colliding code", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		seq := []string{"AAAAAAAAAAAA", "AAAAAAAAAAAA", "BBBBBBBBBBBB"}
		i := 0
		gen := func() (string, error) {
			c := seq[i%len(seq)]
			i++
			return c, nil
		}
		ledger := usecase.NewLedgerUseCase(f.store, testOwnerID, newTestLogger(),
			usecase.WithLedgerClock(f.clock.Now), usecase.WithCodeGenerator(gen))
		p := usecase.CodeParams{Name: "c", Days: 1, Limit: model.Capped(1), ExpiresInDays: 1}

		// --- Act ---
		first, err1 := ledger.CreateCode(ctx, testOwnerID, p)
		second, err2 := ledger.CreateCode(ctx, testOwnerID, p)

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if first.Code != "AAAAAAAAAAAA" || second.Code != "BBBBBBBBBBBB" {
			t.Errorf("expected regeneration on collision, got %s then %s", first.Code, second.Code)
		}
	})
}

func TestLedger_CreateBulk(t *testing.T) {
	ctx := context.Background()

	t.Run("should create numbered single-use codes", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		p := usecase.CodeParams{Name: "Promo", Days: 10, ExpiresInDays: 30}

		// --- Act ---
		res, err := f.ledger.CreateBulk(ctx, testOwnerID, p, 5)

		// --- Assert ---
		if err != nil {
			t.Fatalf("CreateBulk failed: %v", err)
		}
		if !res.Complete() || len(res.Codes) != 5 {
			t.Fatalf("expected 5 codes, got %d", len(res.Codes))
		}
		for i, rc := range res.Codes {
			if want := fmt.Sprintf("Promo #%d", i+1); rc.Name != want {
				t.Errorf("code %d: expected name %q, got %q", i, want, rc.Name)
			}
			if n, capped := rc.Limit.Max(); !capped || n != 1 {
				t.Errorf("code %d: expected Capped(1), got %s", i, rc.Limit)
			}
			if rc.Category != model.CategoryBulk || rc.Days != 10 {
				t.Errorf("code %d: unexpected category/days %q/%d", i, rc.Category, rc.Days)
			}
		}
		listing := res.Listing()
		if !strings.HasPrefix(listing, "Generated 5 codes on ") {
			t.Errorf("unexpected listing header: %q", listing)
		}
		wantLine := fmt.Sprintf("Promo #3: %s (Expires: %s)", res.Codes[2].Code, baseTime.Add(30*day).Format(model.DayLayout))
		if !strings.Contains(listing, wantLine) {
			t.Errorf("expected listing to contain %q", wantLine)
		}
	})

	t.Run("should reject a count out of range", func(t *testing.T) {
		f := newFixture(t)
		p := usecase.CodeParams{Name: "Promo", Days: 10, ExpiresInDays: 30}

		for _, n := range []int{0, 101} {
			if _, err := f.ledger.CreateBulk(ctx, testOwnerID, p, n); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("count %d: expected ErrInvalidArgument, got %v", n, err)
			}
		}
	})

	t.Run("should report partial progress when the store fails", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.backend.SaveFunc = func(doc *model.Document) error {
			if len(doc.RedeemCodes) > 2 {
				return errors.New("disk full")
			}
			return nil
		}

		// --- Act ---
		res, err := f.ledger.CreateBulk(ctx, testOwnerID, usecase.CodeParams{Name: "P", Days: 1, ExpiresInDays: 1}, 5)

		// --- Assert ---
		if !errors.Is(err, domain.ErrStoreFailure) {
			t.Fatalf("expected ErrStoreFailure, got %v", err)
		}
		if res == nil || len(res.Codes) != 2 || res.Complete() {
			t.Fatalf("expected exactly 2 committed codes, got %+v", res)
		}
		if got := len(f.backend.snapshot().RedeemCodes); got != 2 {
			t.Errorf("expected 2 persisted codes, got %d", got)
		}
	})
}

func TestLedger_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("should grant premium and record the claim", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		rc := f.mustCreate(t, usecase.CodeParams{Name: "Gift", Days: 10, Limit: model.Capped(2), ExpiresInDays: 30})

		// --- Act ---
		got, err := f.ledger.Redeem(ctx, "  "+strings.ToLower(rc.Code)+" ", 100, "alice")

		// --- Assert ---
		if err != nil {
			t.Fatalf("Redeem failed: %v", err)
		}
		if !got.ExpiresAt.Equal(baseTime.Add(10*day)) || got.Days != 10 {
			t.Errorf("unexpected redemption: %+v", got)
		}
		if got.Remaining != 1 || got.Unlimited || !got.FirstClaim {
			t.Errorf("expected 1 use left on a first claim, got %+v", got)
		}
		doc := f.backend.snapshot()
		user := doc.Users[100]
		if user == nil || user.Plan != model.PlanPremium || len(user.CodeHistory) != 1 {
			t.Fatalf("expected premium user with one history entry, got %+v", user)
		}
		if c := doc.RedeemCodes[rc.Code]; c.Used != 1 || !c.ClaimedBy(100) {
			t.Errorf("expected claim recorded on code, got %+v", c)
		}
		if doc.Stats.TotalClaimed != 1 || doc.Stats.UniqueUsersClaimed != 1 {
			t.Errorf("unexpected stats: %+v", doc.Stats)
		}
		if premium, _ := f.ledger.IsPremium(ctx, 100); !premium {
			t.Error("expected IsPremium after redemption")
		}
	})

	t.Run("should stack premium on top of a running entitlement", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		a := f.mustCreate(t, usecase.CodeParams{Name: "A", Days: 10, Limit: model.Unlimited(), ExpiresInDays: 30})
		b := f.mustCreate(t, usecase.CodeParams{Name: "B", Days: 5, Limit: model.Unlimited(), ExpiresInDays: 30})

		// --- Act ---
		_, err1 := f.ledger.Redeem(ctx, a.Code, 100, "alice")
		f.clock.Advance(3 * day)
		got, err2 := f.ledger.Redeem(ctx, b.Code, 100, "alice")

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if want := baseTime.Add(15 * day); !got.ExpiresAt.Equal(want) {
			t.Errorf("expected stacked expiry %v, got %v", want, got.ExpiresAt)
		}
		if f.backend.snapshot().Stats.UniqueUsersClaimed != 1 {
			t.Error("expected unique claimers to count the user once")
		}
	})

	t.Run("should restart from now after the entitlement lapsed", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, usecase.CodeParams{Name: "A", Days: 1, Limit: model.Unlimited(), ExpiresInDays: 30})
		b := f.mustCreate(t, usecase.CodeParams{Name: "B", Days: 2, Limit: model.Unlimited(), ExpiresInDays: 30})

		_, _ = f.ledger.Redeem(ctx, a.Code, 100, "alice")
		f.clock.Advance(5 * day)
		got, err := f.ledger.Redeem(ctx, b.Code, 100, "alice")

		if err != nil {
			t.Fatalf("Redeem failed: %v", err)
		}
		if want := baseTime.Add(7 * day); !got.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, got.ExpiresAt)
		}
	})

	t.Run("should reject before activation and accept exactly at it", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		rc := f.mustCreate(t, usecase.CodeParams{Name: "S", Days: 1, Limit: model.Capped(1), ExpiresInDays: 30, ActivateInDays: intPtr(2)})
		f.clock.Set(rc.ActivateAt.Add(-time.Second))

		// --- Act ---
		_, early := f.ledger.Redeem(ctx, rc.Code, 100, "alice")
		f.clock.Set(rc.ActivateAt)
		_, onTime := f.ledger.Redeem(ctx, rc.Code, 100, "alice")

		// --- Assert ---
		var ee *domain.EntitlementError
		if !errors.As(early, &ee) || !errors.Is(early, domain.ErrCodeNotYetActive) {
			t.Fatalf("expected ErrCodeNotYetActive, got %v", early)
		}
		if !ee.ActivateAt.Equal(rc.ActivateAt) {
			t.Errorf("expected activation time in the error, got %v", ee.ActivateAt)
		}
		if onTime != nil {
			t.Fatalf("expected redemption at activation time, got %v", onTime)
		}
	})

	t.Run("should reject an expired code regardless of remaining uses", func(t *testing.T) {
		f := newFixture(t)
		rc := f.mustCreate(t, usecase.CodeParams{Name: "E", Days: 1, Limit: model.Unlimited(), ExpiresInDays: 1})
		f.clock.Set(rc.ExpiresAt)

		_, err := f.ledger.Redeem(ctx, rc.Code, 100, "alice")

		var ee *domain.EntitlementError
		if !errors.As(err, &ee) || ee.Err != domain.ErrCodeExpired {
			t.Fatalf("expected ErrCodeExpired, got %v", err)
		}
		if !ee.ExpiresAt.Equal(rc.ExpiresAt) {
			t.Errorf("expected expiry in the error, got %v", ee.ExpiresAt)
		}
	})

	t.Run("should report the documented reasons in order", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		single := f.mustCreate(t, usecase.CodeParams{Name: "one", Days: 1, Limit: model.Capped(1), ExpiresInDays: 5})
		multi := f.mustCreate(t, usecase.CodeParams{Name: "many", Days: 1, Limit: model.Capped(3), ExpiresInDays: 5})
		_, _ = f.ledger.Redeem(ctx, single.Code, 100, "alice")
		_, _ = f.ledger.Redeem(ctx, multi.Code, 100, "alice")

		// --- Act & Assert ---
		if _, err := f.ledger.Redeem(ctx, "NOPE", 100, "alice"); !errors.Is(err, domain.ErrCodeNotFound) {
			t.Errorf("expected ErrCodeNotFound, got %v", err)
		}
		_, err := f.ledger.Redeem(ctx, single.Code, 200, "bob")
		var ee *domain.EntitlementError
		if !errors.As(err, &ee) || ee.Err != domain.ErrCodeExhausted || ee.Limit != 1 || ee.Used != 1 {
			t.Errorf("expected ErrCodeExhausted 1/1, got %v", err)
		}
		// exhausted wins over already claimed for the original claimant
		if _, err := f.ledger.Redeem(ctx, single.Code, 100, "alice"); !errors.Is(err, domain.ErrCodeExhausted) {
			t.Errorf("expected ErrCodeExhausted, got %v", err)
		}
		if _, err := f.ledger.Redeem(ctx, multi.Code, 100, "alice"); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Errorf("expected ErrAlreadyClaimed, got %v", err)
		}
	})

	t.Run("should enforce the per-user quota except for the owner", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		_ = f.store.Update(ctx, "test", func(doc *model.Document) error {
			doc.Settings.MaxCodesPerUser = 2
			return nil
		})
		codes := make([]*model.RedeemCode, 3)
		for i := range codes {
			codes[i] = f.mustCreate(t, usecase.CodeParams{Name: "q", Days: 1, Limit: model.Unlimited(), ExpiresInDays: 5})
		}
		_, _ = f.ledger.Redeem(ctx, codes[0].Code, 100, "alice")
		_, _ = f.ledger.Redeem(ctx, codes[1].Code, 100, "alice")

		// --- Act ---
		_, err := f.ledger.Redeem(ctx, codes[2].Code, 100, "alice")
		for _, c := range codes {
			if _, oerr := f.ledger.Redeem(ctx, c.Code, testOwnerID, "owner"); oerr != nil {
				t.Fatalf("owner redemption failed: %v", oerr)
			}
		}

		// --- Assert ---
		var ee *domain.EntitlementError
		if !errors.As(err, &ee) || ee.Err != domain.ErrUserQuotaExceeded || ee.Max != 2 || ee.Claimed != 2 {
			t.Fatalf("expected ErrUserQuotaExceeded 2/2, got %v", err)
		}
		if n, _ := f.ledger.ClaimCount(ctx, 100); n != 2 {
			t.Errorf("expected 2 claims for the user, got %d", n)
		}
	})

	t.Run("should admit exactly limit concurrent claimants", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		const k, users = 3, 25
		rc := f.mustCreate(t, usecase.CodeParams{Name: "race", Days: 1, Limit: model.Capped(k), ExpiresInDays: 5})
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			others    []error
		)

		// --- Act ---
		for i := 0; i < users; i++ {
			wg.Add(1)
			go func(uid int64) {
				defer wg.Done()
				_, err := f.ledger.Redeem(ctx, rc.Code, uid, "u")
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				others = append(others, err)
			}(int64(100 + i))
		}
		wg.Wait()

		// --- Assert ---
		if succeeded != k {
			t.Fatalf("expected %d successes, got %d", k, succeeded)
		}
		for _, err := range others {
			if !errors.Is(err, domain.ErrCodeExhausted) && !errors.Is(err, domain.ErrAlreadyClaimed) {
				t.Errorf("unexpected failure: %v", err)
			}
		}
		code := f.backend.snapshot().RedeemCodes[rc.Code]
		seen := map[int64]bool{}
		for _, c := range code.Claims {
			if seen[c.UserID] {
				t.Errorf("duplicate claim for user %d", c.UserID)
			}
			seen[c.UserID] = true
		}
		if code.Used != k || len(code.Claims) != k {
			t.Errorf("expected used == claims == %d, got %d/%d", k, code.Used, len(code.Claims))
		}
	})
}

func TestLedger_Templates(t *testing.T) {
	ctx := context.Background()

	t.Run("should create, list, instantiate and delete a template", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)

		// --- Act ---
		tpl, err := f.ledger.CreateTemplate(ctx, usecase.TemplateParams{Name: "Monthly", Days: 30, Limit: model.Capped(1), ExpiresInDays: 60})
		if err != nil {
			t.Fatalf("CreateTemplate failed: %v", err)
		}
		list, _ := f.ledger.ListTemplates(ctx)
		rc, err := f.ledger.Instantiate(ctx, testOwnerID, tpl.ID, &usecase.TemplateOverrides{Name: "Monthly for Bob"})
		if err != nil {
			t.Fatalf("Instantiate failed: %v", err)
		}
		removed, err := f.ledger.DeleteTemplate(ctx, tpl.ID)

		// --- Assert ---
		if tpl.Category != model.CategoryTemplate || tpl.ID == "" || strings.ToLower(tpl.ID) != tpl.ID {
			t.Errorf("unexpected template: %+v", tpl)
		}
		if len(list) != 1 || list[0].ID != tpl.ID {
			t.Errorf("expected the template in the list, got %+v", list)
		}
		if rc.Name != "Monthly for Bob" || rc.Days != 30 || rc.Category != model.CategoryTemplate {
			t.Errorf("unexpected instantiated code: %+v", rc)
		}
		if !rc.ExpiresAt.Equal(baseTime.Add(60 * day)) {
			t.Errorf("expected template expiry, got %v", rc.ExpiresAt)
		}
		if err != nil || removed.ID != tpl.ID {
			t.Fatalf("DeleteTemplate failed: %v", err)
		}
		if _, err := f.ledger.Instantiate(ctx, testOwnerID, tpl.ID, nil); !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Errorf("expected ErrTemplateNotFound after delete, got %v", err)
		}
	})

	t.Run("should reject an invalid template", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ledger.CreateTemplate(ctx, usecase.TemplateParams{Name: "bad", Days: 0, Limit: model.Capped(1), ExpiresInDays: 1})

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
