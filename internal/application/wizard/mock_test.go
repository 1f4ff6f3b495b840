//go:build !integration

package wizard_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/application/wizard"
	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/memory"
	"telegram-sticker-cloner/internal/infra/store"
	"telegram-sticker-cloner/internal/usecase"
)

const (
	ownerID int64 = 1
	adminID int64 = 2
	userID  int64 = 100
)

var (
	owner = wizard.Actor{ID: ownerID, Name: "owner"}
	admin = wizard.Actor{ID: adminID, Name: "admin"}
	user  = wizard.Actor{ID: userID, Name: "alice"}
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// keyTranslator echoes keys so tests can assert on which message was sent.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, key)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

// ---- Mock ChannelVerifier ----

type MockVerifier struct {
	IsChannelFunc func(ctx context.Context, channel string) (bool, error)
}

func (m *MockVerifier) IsChannel(ctx context.Context, channel string) (bool, error) {
	if m.IsChannelFunc != nil {
		return m.IsChannelFunc(ctx, channel)
	}
	return true, nil
}

// ---- Mock MembershipChecker ----

type MockMembership struct {
	StatusFunc func(ctx context.Context, channel string, userID int64) (adapter.MemberStatus, error)
}

func (m *MockMembership) Status(ctx context.Context, channel string, userID int64) (adapter.MemberStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, channel, userID)
	}
	return adapter.MemberJoined, nil
}

// ---- Mock StickerCloner ----

type MockCloner struct {
	PackInfoFunc func(ctx context.Context, name string) (*adapter.StickerPack, error)
	CloneFunc    func(ctx context.Context, ownerID int64, source, title string) (*adapter.CloneResult, error)
}

var _ adapter.StickerCloner = (*MockCloner)(nil)

func (m *MockCloner) PackInfo(ctx context.Context, name string) (*adapter.StickerPack, error) {
	if m.PackInfoFunc != nil {
		return m.PackInfoFunc(ctx, name)
	}
	return &adapter.StickerPack{Name: name, Title: "Source " + name, Count: 12}, nil
}

func (m *MockCloner) Clone(ctx context.Context, ownerID int64, source, title string) (*adapter.CloneResult, error) {
	if m.CloneFunc != nil {
		return m.CloneFunc(ctx, ownerID, source, title)
	}
	name := fmt.Sprintf("copy_%s_by_testbot", source)
	return &adapter.CloneResult{Name: name, Title: title, URL: "https://t.me/addstickers/" + name, Added: 12}, nil
}

// ---- Mock Broadcast ----

type MockBroadcast struct {
	Messages []string
}

func (m *MockBroadcast) BroadcastMessage(ctx context.Context, senderID int64, message string) (int, error) {
	m.Messages = append(m.Messages, message)
	return 7, nil
}

// =============================
// Fixture
// =============================

type fixture struct {
	store      *store.Store
	clock      *fakeClock
	ledger     usecase.LedgerUseCase
	settings   usecase.SettingsUseCase
	users      usecase.UserUseCase
	verifier   *MockVerifier
	membership *MockMembership
	cloner     *MockCloner
	broadcast  *MockBroadcast
	sessions   *memory.SessionStore
	engine     *wizard.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := newTestLogger()

	f := &fixture{
		clock:      &fakeClock{t: baseTime},
		verifier:   &MockVerifier{},
		membership: &MockMembership{},
		cloner:     &MockCloner{},
		broadcast:  &MockBroadcast{},
	}
	s, err := store.New(ctx, store.NewFileBackend(filepath.Join(t.TempDir(), "ledger.json")),
		store.WithRetry(1, time.Millisecond))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	f.store = s

	limits := config.LimitsConfig{
		Window:        time.Hour,
		CloneNormal:   3,
		ClonePremium:  10,
		Redeem:        5,
		Other:         10,
		BulkMax:       100,
		AdminQuotaTTL: 48 * time.Hour,
	}
	f.ledger = usecase.NewLedgerUseCase(s, ownerID, logger, usecase.WithLedgerClock(f.clock.Now))
	f.settings = usecase.NewSettingsUseCase(s, f.verifier, logger)
	f.users = usecase.NewUserUseCase(s, logger).WithClock(f.clock.Now)
	limiter := usecase.NewRateLimiter(memory.NewLimitStore(f.clock.Now), f.ledger, f.settings, limits, ownerID, logger).
		WithClock(f.clock.Now)
	policy := usecase.NewAccessPolicy(f.settings, f.membership, limiter, ownerID, logger)

	machine := wizard.NewMachine(wizard.Deps{
		Ledger:    f.ledger,
		Settings:  f.settings,
		Users:     f.users,
		Policy:    policy,
		Limiter:   limiter,
		Cloner:    f.cloner,
		Broadcast: f.broadcast,
		Text:      keyTranslator{},
		OwnerID:   ownerID,
		IsAdmin:   func(id int64) bool { return id == adminID },
		Logger:    logger,
	})
	f.sessions = memory.NewSessionStore(15*time.Minute, f.clock.Now)
	f.engine = wizard.NewEngine(machine, f.sessions, logger)
	return f
}

func (f *fixture) begin(t *testing.T, a wizard.Actor, flow model.WizardFlow) wizard.Transition {
	t.Helper()
	tr, err := f.engine.Begin(context.Background(), a.ID, a, flow)
	if err != nil {
		t.Fatalf("Begin(%s) failed: %v", flow, err)
	}
	return tr
}

func (f *fixture) send(t *testing.T, a wizard.Actor, ev wizard.Event) wizard.Transition {
	t.Helper()
	tr, err := f.engine.Handle(context.Background(), a.ID, a, ev)
	if err != nil {
		t.Fatalf("Handle(%+v) failed: %v", ev, err)
	}
	return tr
}

// drive feeds events in order and returns the last transition.
func (f *fixture) drive(t *testing.T, a wizard.Actor, events ...wizard.Event) wizard.Transition {
	t.Helper()
	var tr wizard.Transition
	for _, ev := range events {
		tr = f.send(t, a, ev)
	}
	return tr
}

func (f *fixture) session(t *testing.T, a wizard.Actor) *model.WizardSession {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	return sess
}

func (f *fixture) codes(t *testing.T) []*model.RedeemCode {
	t.Helper()
	var out []*model.RedeemCode
	err := f.store.View(context.Background(), func(doc *model.Document) error {
		for _, rc := range doc.RedeemCodes {
			out = append(out, rc.Copy())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	return out
}

func (f *fixture) setSettings(t *testing.T, fn func(s *model.Settings)) {
	t.Helper()
	err := f.store.Update(context.Background(), "test", func(doc *model.Document) error {
		fn(&doc.Settings)
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func text(s string) wizard.Event { return wizard.TextEvent(s) }

func press(a wizard.Action, value string) wizard.Event {
	return wizard.ButtonEvent(wizard.Button{Action: a, Value: value})
}

// replyWith returns the first reply whose text starts with key.
func replyWith(tr wizard.Transition, key string) (wizard.Reply, bool) {
	for _, r := range tr.Replies {
		if strings.HasPrefix(r.Text, key) {
			return r, true
		}
	}
	return wizard.Reply{}, false
}

func replyTexts(tr wizard.Transition) []string {
	out := make([]string, 0, len(tr.Replies))
	for _, r := range tr.Replies {
		out = append(out, r.Text)
	}
	return out
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
