package wizard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"
)

// Actor is the user driving a session.
type Actor struct {
	ID   int64
	Name string
}

// Engine keeps one session per chat and runs it through the Machine.
type Engine struct {
	machine  *Machine
	sessions repository.SessionRepository
	log      *zerolog.Logger
}

func NewEngine(machine *Machine, sessions repository.SessionRepository, logger *zerolog.Logger) *Engine {
	return &Engine{machine: machine, sessions: sessions, log: logger}
}

// Begin starts flow in chatID, replacing any session already open there.
func (e *Engine) Begin(ctx context.Context, chatID int64, actor Actor, flow model.WizardFlow) (Transition, error) {
	if err := e.sessions.Delete(ctx, chatID); err != nil {
		return Transition{}, fmt.Errorf("reset wizard session: %w", err)
	}
	sess := &model.WizardSession{
		ChatID:    chatID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Flow:      flow,
	}
	tr, err := e.machine.Enter(ctx, sess)
	if err != nil || tr.Done {
		return tr, err
	}
	sess.State = tr.Next
	if err := e.sessions.Save(ctx, sess); err != nil {
		return done(e.machine.failure()), fmt.Errorf("save wizard session: %w", err)
	}
	e.log.Debug().Int64("chat_id", chatID).Str("flow", string(flow)).Str("state", string(sess.State)).Msg("wizard started")
	return tr, nil
}

// Handle advances the chat's session. It returns domain.ErrNoSession when
// the chat has none or it belongs to another user.
func (e *Engine) Handle(ctx context.Context, chatID int64, actor Actor, ev Event) (Transition, error) {
	sess, err := e.sessions.Get(ctx, chatID)
	if err != nil {
		return Transition{}, fmt.Errorf("load wizard session: %w", err)
	}
	if sess == nil || sess.ActorID != actor.ID {
		return Transition{}, domain.ErrNoSession
	}

	tr, err := e.machine.Step(ctx, sess, ev)
	if err != nil || tr.Done {
		if derr := e.sessions.Delete(ctx, chatID); derr != nil {
			e.log.Error().Err(derr).Int64("chat_id", chatID).Msg("failed to discard wizard session")
		}
		return tr, err
	}
	sess.State = tr.Next
	if err := e.sessions.Save(ctx, sess); err != nil {
		return done(e.machine.failure()), fmt.Errorf("save wizard session: %w", err)
	}
	return tr, nil
}

// Active reports whether chatID has a session in progress.
func (e *Engine) Active(ctx context.Context, chatID int64) (bool, error) {
	sess, err := e.sessions.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}
