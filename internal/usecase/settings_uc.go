package usecase

import (
	"context"
	"slices"

	"telegram-sticker-cloner/internal/domain"
	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/adapter"
	"telegram-sticker-cloner/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

// SettingsUseCase reads and mutates the runtime settings. Every mutation is
// persisted before it returns.
type SettingsUseCase interface {
	Get(ctx context.Context) (model.Settings, error)
	AddChannel(ctx context.Context, name string) (bool, error)
	RemoveChannel(ctx context.Context, name string) (bool, error)
	ToggleForceJoin(ctx context.Context, action model.Action) (bool, error)
}

type settingsUC struct {
	store    DocumentStore
	verifier adapter.ChannelVerifier
	log      *zerolog.Logger
}

func NewSettingsUseCase(store DocumentStore, verifier adapter.ChannelVerifier, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{store: store, verifier: verifier, log: logger}
}

func (uc *settingsUC) Get(ctx context.Context) (model.Settings, error) {
	var set model.Settings
	err := uc.store.View(ctx, func(doc *model.Document) error {
		set = doc.Settings.Copy()
		return nil
	})
	return set, err
}

// AddChannel verifies name with Telegram and adds it to the gating list.
// It returns false when the channel was already configured.
func (uc *settingsUC) AddChannel(ctx context.Context, name string) (bool, error) {
	defer logging.TraceDuration(uc.log, "SettingsUC.AddChannel")()

	name = model.NormalizeChannel(name)
	if name == "" {
		return false, &domain.ValidationError{Field: "channel", Reason: "must not be empty"}
	}
	if uc.verifier != nil {
		ok, err := uc.verifier.IsChannel(ctx, name)
		if err != nil {
			return false, &domain.CollaboratorError{Op: "verify channel @" + name, Err: err}
		}
		if !ok {
			return false, &domain.ValidationError{Field: "channel", Reason: "@" + name + " is not a channel"}
		}
	}

	var added bool
	err := uc.store.Update(ctx, "add_channel", func(doc *model.Document) error {
		added = doc.Settings.AddChannel(name)
		return nil
	})
	if err != nil {
		return false, err
	}
	if added {
		uc.log.Info().Str("channel", name).Msg("gating channel added")
	}
	return added, nil
}

func (uc *settingsUC) RemoveChannel(ctx context.Context, name string) (bool, error) {
	defer logging.TraceDuration(uc.log, "SettingsUC.RemoveChannel")()

	var removed bool
	err := uc.store.Update(ctx, "remove_channel", func(doc *model.Document) error {
		removed = doc.Settings.RemoveChannel(name)
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		uc.log.Info().Str("channel", model.NormalizeChannel(name)).Msg("gating channel removed")
	}
	return removed, nil
}

// ToggleForceJoin flips the force-join rule for action and returns whether
// it is now enforced.
func (uc *settingsUC) ToggleForceJoin(ctx context.Context, action model.Action) (bool, error) {
	defer logging.TraceDuration(uc.log, "SettingsUC.ToggleForceJoin")()

	if !slices.Contains(model.GatedActions, action) {
		return false, &domain.ValidationError{Field: "action", Reason: "cannot be gated: " + string(action)}
	}
	var enforced bool
	err := uc.store.Update(ctx, "toggle_force_join", func(doc *model.Document) error {
		enforced = doc.Settings.ToggleForceJoin(action)
		return nil
	})
	if err != nil {
		return false, err
	}
	uc.log.Info().Str("action", string(action)).Bool("enforced", enforced).Msg("force-join toggled")
	return enforced, nil
}
