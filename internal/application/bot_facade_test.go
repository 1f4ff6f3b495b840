//go:build !integration

package application_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/application"
	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/memory"
	"telegram-sticker-cloner/internal/usecase"
)

// ---- mocks implementing the use case surface the facade needs ----

type mockUserUC struct {
	RegisterFunc    func(ctx context.Context, userID int64, name string, referrerID int64) (*usecase.Registration, error)
	LeaderboardFunc func(ctx context.Context, n int) ([]*model.User, error)
}

func (m *mockUserUC) RegisterOrFetch(ctx context.Context, userID int64, name string, referrerID int64) (*usecase.Registration, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, userID, name, referrerID)
	}
	u, _ := model.NewUser(userID, name, time.Now())
	return &usecase.Registration{User: u}, nil
}

func (m *mockUserUC) Profile(ctx context.Context, userID int64) (*model.User, error) {
	return nil, nil
}

func (m *mockUserUC) Leaderboard(ctx context.Context, n int) ([]*model.User, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, n)
	}
	return nil, nil
}

func (m *mockUserUC) RecordClone(ctx context.Context, userID int64, name string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserUC) ExpireLapsedPlans(ctx context.Context) (int, int, error) { return 0, 0, nil }

func (m *mockUserUC) ListIDs(ctx context.Context) ([]int64, error) { return nil, nil }

type mockLimiter struct{ ceiling int }

func (m *mockLimiter) Allow(ctx context.Context, userID int64, action model.Action) (bool, error) {
	return true, nil
}

func (m *mockLimiter) AllowAdmin(ctx context.Context, adminID int64, action model.Action) (bool, error) {
	return true, nil
}

func (m *mockLimiter) Ceiling(ctx context.Context, userID int64, action model.Action) (int, error) {
	return m.ceiling, nil
}

type mockMessenger struct {
	sent map[int64][]string
}

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.sent == nil {
		m.sent = map[int64][]string{}
	}
	m.sent[chatID] = append(m.sent[chatID], text)
	return nil
}

func (m *mockMessenger) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	return m.SendMessage(ctx, chatID, text)
}

func (m *mockMessenger) SendDocument(ctx context.Context, chatID int64, doc adapter.Document) error {
	return m.SendMessage(ctx, chatID, doc.Caption)
}

type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	parts := []string{key}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

func (k keyTranslator) Help(args ...interface{}) string { return k.T("help", args...) }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newFacade(users *mockUserUC, notifier *mockMessenger) *application.BotFacade {
	logger := newTestLogger()
	machine := wizard.NewMachine(wizard.Deps{Text: keyTranslator{}, OwnerID: 1, Logger: logger})
	engine := wizard.NewEngine(machine, memory.NewSessionStore(time.Minute, nil), logger)
	return application.NewBotFacade(
		users, &mockLimiter{ceiling: 3}, nil, nil, engine, notifier, keyTranslator{},
		config.BotConfig{OwnerID: 1, AdminIDs: []int64{2}, Username: "cloner_bot"},
		config.LimitsConfig{CloneNormal: 3, ClonePremium: 10},
		logger,
	)
}

func TestBotFacade_HandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("should pass the deep-link referrer and notify them", func(t *testing.T) {
		// --- Arrange ---
		var gotReferrer int64
		users := &mockUserUC{RegisterFunc: func(ctx context.Context, userID int64, name string, referrerID int64) (*usecase.Registration, error) {
			gotReferrer = referrerID
			return &usecase.Registration{
				User:     &model.User{ID: userID, Name: name, Points: 1},
				Created:  true,
				Referrer: &model.User{ID: referrerID, Name: "bob", Points: 4},
			}, nil
		}}
		notifier := &mockMessenger{}
		facade := newFacade(users, notifier)

		// --- Act ---
		text, err := facade.HandleStart(ctx, 10, "alice", "77")

		// --- Assert ---
		if err != nil {
			t.Fatalf("HandleStart failed: %v", err)
		}
		if gotReferrer != 77 {
			t.Errorf("expected referrer 77, got %d", gotReferrer)
		}
		if text != "welcome|alice" {
			t.Errorf("unexpected welcome: %q", text)
		}
		if msgs := notifier.sent[77]; len(msgs) != 1 || msgs[0] != "referral_credited|alice|4" {
			t.Errorf("expected the referrer notified, got %v", notifier.sent)
		}
	})

	t.Run("should ignore a payload that is not a user id", func(t *testing.T) {
		var gotReferrer int64 = -1
		users := &mockUserUC{RegisterFunc: func(ctx context.Context, userID int64, name string, referrerID int64) (*usecase.Registration, error) {
			gotReferrer = referrerID
			return &usecase.Registration{User: &model.User{ID: userID, Name: name}}, nil
		}}
		facade := newFacade(users, &mockMessenger{})

		text, _ := facade.HandleStart(ctx, 10, "alice", "promo")

		if gotReferrer != 0 || text != "welcome_back|alice" {
			t.Errorf("unexpected result: referrer=%d text=%q", gotReferrer, text)
		}
	})
}

func TestBotFacade_HandleProfile(t *testing.T) {
	// --- Arrange ---
	now := time.Now()
	expires := now.Add(48 * time.Hour)
	users := &mockUserUC{RegisterFunc: func(ctx context.Context, userID int64, name string, referrerID int64) (*usecase.Registration, error) {
		u := &model.User{ID: userID, Name: name, Points: 3, Clones: 2, Plan: model.PlanPremium, PremiumExpires: &expires}
		for i := 1; i <= 5; i++ {
			u.CodeHistory = append(u.CodeHistory, model.CodeHistoryEntry{Code: fmt.Sprintf("C%d", i), Name: fmt.Sprintf("n%d", i), Days: i, ClaimedAt: now})
		}
		return &usecase.Registration{User: u}, nil
	}}
	facade := newFacade(users, &mockMessenger{})

	// --- Act ---
	text, err := facade.HandleProfile(context.Background(), 10, "alice")

	// --- Assert ---
	if err != nil {
		t.Fatalf("HandleProfile failed: %v", err)
	}
	if !strings.HasPrefix(text, "profile|alice|10|Premium|3|2|3") {
		t.Errorf("unexpected profile header: %q", text)
	}
	if n := strings.Count(text, "profile_code_row"); n != 3 {
		t.Errorf("expected the last 3 codes, got %d in %q", n, text)
	}
	if strings.Contains(text, "|C2|") || !strings.Contains(text, "|C5|") {
		t.Errorf("expected only the most recent codes, got %q", text)
	}
}

func TestBotFacade_HandleLeaderboard(t *testing.T) {
	var asked int
	users := &mockUserUC{LeaderboardFunc: func(ctx context.Context, n int) ([]*model.User, error) {
		asked = n
		return []*model.User{{Name: "a", Points: 9}, {Name: "b", Points: 5, Clones: 1}}, nil
	}}
	facade := newFacade(users, &mockMessenger{})

	text, err := facade.HandleLeaderboard(context.Background())

	if err != nil || asked != 5 {
		t.Fatalf("expected a top-5 query, got n=%d err=%v", asked, err)
	}
	if !strings.Contains(text, "leaderboard_row|1|a|9|0") || !strings.Contains(text, "leaderboard_row|2|b|5|1") {
		t.Errorf("unexpected leaderboard: %q", text)
	}
}

func TestBotFacade_Misc(t *testing.T) {
	ctx := context.Background()
	facade := newFacade(&mockUserUC{}, &mockMessenger{})

	t.Run("should build the invite link from the bot username", func(t *testing.T) {
		text, _ := facade.HandleRefer(ctx, 10, "alice")
		if !strings.Contains(text, "https://t.me/cloner_bot?start=10") {
			t.Errorf("unexpected invite text: %q", text)
		}
	})

	t.Run("should say there is nothing to cancel", func(t *testing.T) {
		tr, err := facade.CancelWizard(ctx, 10, wizard.Actor{ID: 10})
		if err != nil || !tr.Done || tr.Replies[0].Text != "no_active_wizard" {
			t.Errorf("unexpected cancel result: %+v, %v", tr, err)
		}
	})

	t.Run("should recognise owner and admins", func(t *testing.T) {
		if !facade.IsAdmin(1) || !facade.IsAdmin(2) || facade.IsAdmin(3) || facade.IsOwner(2) {
			t.Error("unexpected role checks")
		}
	})

	t.Run("should format help with the clone ceilings", func(t *testing.T) {
		if got := facade.HandleHelp(); got != "help|3|10" {
			t.Errorf("unexpected help: %q", got)
		}
	})
}
