package memory

import (
	"context"
	"sync"
	"time"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionStore)(nil)

// SessionStore keeps wizard sessions in process memory. Sessions idle for
// longer than ttl are treated as absent.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]model.WizardSession
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{sessions: make(map[int64]model.WizardSession), ttl: ttl, now: now}
}

func (s *SessionStore) Get(ctx context.Context, chatID int64) (*model.WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	if s.expired(sess) {
		delete(s.sessions, chatID)
		return nil, nil
	}
	return detach(sess), nil
}

func (s *SessionStore) Save(ctx context.Context, sess *model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := detach(*sess)
	cp.UpdatedAt = s.now()
	s.sessions[sess.ChatID] = *cp
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func detach(sess model.WizardSession) *model.WizardSession {
	if d := sess.Draft.ActivateInDays; d != nil {
		v := *d
		sess.Draft.ActivateInDays = &v
	}
	return &sess
}

func (s *SessionStore) expired(sess model.WizardSession) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) >= s.ttl
}

// Len counts stored sessions, including ones not yet swept.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
