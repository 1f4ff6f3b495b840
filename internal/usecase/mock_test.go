//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/config"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/memory"
	"telegram-sticker-cloner/internal/infra/store"
	"telegram-sticker-cloner/internal/usecase"
)

const testOwnerID int64 = 1

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// -----------------------------
// Clock
// -----------------------------

// fakeClock is a settable time source shared by the use cases under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: baseTime} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// =============================
// Repositories
// =============================

// ---- In-memory document backend ----

type memBackend struct {
	mu       sync.Mutex
	doc      *model.Document
	saves    int
	SaveFunc func(doc *model.Document) error
}

func (m *memBackend) Load(ctx context.Context) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, nil
	}
	return m.doc.Clone(), nil
}

func (m *memBackend) Save(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveFunc != nil {
		if err := m.SaveFunc(doc); err != nil {
			return err
		}
	}
	m.saves++
	m.doc = doc.Clone()
	return nil
}

// snapshot returns a copy of the last persisted document.
func (m *memBackend) snapshot() *model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

func (m *memBackend) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func newTestStore(t *testing.T, b *memBackend) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), b,
		store.WithRetry(2, time.Millisecond),
		store.WithAcquireTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return s
}

// =============================
// Adapters
// =============================

// ---- Mock Messenger ----

type sentMessage struct {
	ChatID int64
	Text   string
}

type MockMessenger struct {
	mu   sync.Mutex
	Sent []sentMessage

	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockMessenger) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	return m.SendMessage(ctx, chatID, text)
}

func (m *MockMessenger) SendDocument(ctx context.Context, chatID int64, doc adapter.Document) error {
	return m.SendMessage(ctx, chatID, doc.Caption)
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

// =============================
// Fixture
// =============================

// fixture wires the use cases over one in-memory store, the way cmd/app does.
type fixture struct {
	backend  *memBackend
	store    *store.Store
	clock    *fakeClock
	limits   *memory.LimitStore
	ledger   usecase.LedgerUseCase
	settings usecase.SettingsUseCase
	limiter  usecase.RateLimiter
	users    usecase.UserUseCase
	stats    usecase.StatsUseCase
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		Window:        time.Hour,
		CloneNormal:   3,
		ClonePremium:  10,
		Redeem:        5,
		Other:         10,
		BulkMax:       100,
		AdminQuotaTTL: 48 * time.Hour,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: &memBackend{}, clock: newFakeClock()}
	f.store = newTestStore(t, f.backend)
	logger := newTestLogger()

	f.limits = memory.NewLimitStore(f.clock.Now)
	f.ledger = usecase.NewLedgerUseCase(f.store, testOwnerID, logger, usecase.WithLedgerClock(f.clock.Now))
	f.settings = usecase.NewSettingsUseCase(f.store, &MockVerifier{}, logger)
	f.limiter = usecase.NewRateLimiter(f.limits, f.ledger, f.settings, testLimits(), testOwnerID, logger).
		WithClock(f.clock.Now)
	f.users = usecase.NewUserUseCase(f.store, logger).WithClock(f.clock.Now)
	f.stats = usecase.NewStatsUseCase(f.store, logger).WithClock(f.clock.Now)
	return f
}

// mustCreate creates a code as the owner or fails the test.
func (f *fixture) mustCreate(t *testing.T, p usecase.CodeParams) *model.RedeemCode {
	t.Helper()
	rc, err := f.ledger.CreateCode(context.Background(), testOwnerID, p)
	if err != nil {
		t.Fatalf("CreateCode failed: %v", err)
	}
	return rc
}

func intPtr(n int) *int { return &n }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
