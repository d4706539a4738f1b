// Package terminals manages the registry of terminal identities known to
// the device and switching the active one.
package terminals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sitepulse/kioskd/internal/engine"
	"github.com/sitepulse/kioskd/internal/identity"
	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/store"
)

// Syncer runs a sync after the identity changes.
type Syncer interface {
	Kick(trigger engine.Trigger)
}

// Switcher is the Terminal Registry & Switcher.
type Switcher struct {
	store  *store.Store
	backup identity.Backup
	syncer Syncer
}

// NewSwitcher creates a Switcher. syncer may be nil.
func NewSwitcher(s *store.Store, b identity.Backup, syncer Syncer) *Switcher {
	return &Switcher{store: s, backup: b, syncer: syncer}
}

// List returns every known terminal, marking none as active.
func (w *Switcher) List(ctx context.Context) ([]model.Terminal, error) {
	return w.store.ListTerminals(ctx)
}

// Active returns the active terminal record, if the registry has one.
func (w *Switcher) Active(ctx context.Context) (model.Terminal, bool, error) {
	id, err := w.store.GetString(ctx, model.KeyDeviceID)
	if err != nil {
		return model.Terminal{}, false, err
	}
	if id == "" {
		return model.Terminal{}, false, nil
	}
	return w.store.GetTerminal(ctx, id)
}

// SwitchTo makes terminalID the active identity.
//
// An unknown id fails with model.ErrUnknownTerminal and changes nothing.
// Records are never deleted. The identity config keys are rewritten in one
// transaction, the backup marker follows, and a sync is requested so the
// roster and policy of the new terminal get pulled.
func (w *Switcher) SwitchTo(ctx context.Context, terminalID string) (model.Terminal, error) {
	term, ok, err := w.store.GetTerminal(ctx, terminalID)
	if err != nil {
		return model.Terminal{}, fmt.Errorf("switch terminal: %w", err)
	}
	if !ok {
		return model.Terminal{}, model.NewError(model.ErrCodeUnknownTerminal, "terminal %q is not registered on this device", terminalID)
	}

	if err := w.store.CommitIdentity(ctx, term, model.IdentityConfig(term)); err != nil {
		return model.Terminal{}, fmt.Errorf("switch terminal: %w", err)
	}
	if err := w.backup.Save(term.ID); err != nil {
		slog.Warn("backup marker write failed", "terminal_id", term.ID, "error", err)
	}

	slog.Info("active terminal switched", "terminal_id", term.ID, "site", term.SiteName)
	if w.syncer != nil {
		w.syncer.Kick(engine.TriggerSwitch)
	}
	return term, nil
}
