package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/remote"
	"github.com/sitepulse/kioskd/internal/store"
)

// Source says where the boot-time identity came from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceBackup   Source = "backup"
	SourceRegistry Source = "registry"
)

// Identity is the resolved active identity at boot.
type Identity struct {
	TerminalID string
	Source     Source
	Healed     bool
}

// Manager is the Pairing & Identity Manager.
type Manager struct {
	store  *store.Store
	remote remote.Client
	backup Backup
}

// NewManager creates a Manager.
func NewManager(s *store.Store, rc remote.Client, b Backup) *Manager {
	return &Manager{store: s, remote: rc, backup: b}
}

// Activate exchanges a human-entered code for a device identity.
//
// The code is validated before any remote call. On success the terminal
// record and the full initial configuration are committed in one
// transaction, then the device id is written to the backup channel. On
// failure nothing is persisted.
func (m *Manager) Activate(ctx context.Context, input string) (model.Terminal, error) {
	code, err := ParseCode(input)
	if err != nil {
		return model.Terminal{}, err
	}

	act, err := m.remote.VerifyActivationCode(ctx, code)
	if err != nil {
		if remote.IsRejected(err) {
			return model.Terminal{}, model.WrapError(model.ErrCodeActivationRejected, "activation code not accepted", err)
		}
		return model.Terminal{}, fmt.Errorf("activate: %w", err)
	}

	term := act.Terminal()
	values := model.IdentityConfig(term)
	values[model.KeyPhotoRequired] = act.PhotoRequired

	if err := m.store.CommitIdentity(ctx, term, values); err != nil {
		return model.Terminal{}, fmt.Errorf("activate: %w", err)
	}

	if err := m.backup.Save(term.ID); err != nil {
		// Primary is authoritative; the next boot repairs the marker.
		slog.Warn("backup marker write failed", "terminal_id", term.ID, "error", err)
	}

	slog.Info("terminal activated", "terminal_id", term.ID, "site", term.SiteName, "organization", term.OrgName)
	return term, nil
}

// RestoreIdentity resolves the active identity at boot, before anything else
// runs. It returns model.ErrNeedsActivation when the device is unpaired.
func (m *Manager) RestoreIdentity(ctx context.Context) (Identity, error) {
	primary, err := m.store.GetString(ctx, model.KeyDeviceID)
	if err != nil {
		return Identity{}, fmt.Errorf("restore identity: %w", err)
	}
	backup, err := m.backup.Load()
	if err != nil {
		// An unreadable marker is treated as absent.
		slog.Warn("backup marker unreadable", "error", err)
		backup = ""
	}

	var id Identity
	switch {
	case primary != "":
		id = Identity{TerminalID: primary, Source: SourcePrimary}
		if backup != primary {
			m.saveBackup(primary)
		}

	case backup != "":
		if err := m.reseed(ctx, backup); err != nil {
			return Identity{}, err
		}
		id = Identity{TerminalID: backup, Source: SourceBackup}
		slog.Info("identity restored from backup marker", "terminal_id", backup)

	default:
		term, ok, err := m.newestTerminal(ctx)
		if err != nil {
			return Identity{}, err
		}
		if !ok {
			return Identity{}, model.ErrNeedsActivation
		}
		if err := m.store.PutConfigs(ctx, model.IdentityConfig(term)); err != nil {
			return Identity{}, fmt.Errorf("restore identity: %w", err)
		}
		m.saveBackup(term.ID)
		id = Identity{TerminalID: term.ID, Source: SourceRegistry}
		slog.Info("identity adopted from terminal registry", "terminal_id", term.ID)
	}

	healed, err := m.SelfHeal(ctx)
	if err != nil {
		return Identity{}, err
	}
	id.Healed = healed
	return id, nil
}

// SelfHeal synthesizes a minimal terminal record from cached configuration
// when the active identity has none. Returns true if a record was created.
func (m *Manager) SelfHeal(ctx context.Context) (bool, error) {
	id, err := m.store.GetString(ctx, model.KeyDeviceID)
	if err != nil {
		return false, fmt.Errorf("self heal: %w", err)
	}
	if id == "" {
		return false, nil
	}

	_, ok, err := m.store.GetTerminal(ctx, id)
	if err != nil {
		return false, fmt.Errorf("self heal: %w", err)
	}
	if ok {
		return false, nil
	}

	term := model.Terminal{ID: id}
	fields := []struct {
		key string
		dst *string
	}{
		{model.KeyKioskName, &term.Name},
		{model.KeySiteID, &term.SiteID},
		{model.KeySiteName, &term.SiteName},
		{model.KeyOrgID, &term.OrgID},
		{model.KeyOrgName, &term.OrgName},
		{model.KeyOrgLogo, &term.LogoURL},
	}
	for _, f := range fields {
		v, err := m.store.GetString(ctx, f.key)
		if err != nil {
			return false, fmt.Errorf("self heal: %w", err)
		}
		*f.dst = v
	}

	if err := m.store.PutTerminal(ctx, term); err != nil {
		return false, fmt.Errorf("self heal: %w", err)
	}
	slog.Info("terminal record synthesized from configuration", "terminal_id", id)
	return true, nil
}

// ActiveTerminalID returns the active identity key, or "" if unpaired.
func (m *Manager) ActiveTerminalID(ctx context.Context) (string, error) {
	return m.store.GetString(ctx, model.KeyDeviceID)
}

// Reset wipes the device: the backup marker first, then every collection.
// Clearing the marker first means a failed store reset still leaves the
// primary to repair the marker on next boot, never the other way round.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.backup.Clear(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := m.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	slog.Info("device reset")
	return nil
}

// reseed writes the identity key from the backup. If the registry still
// knows that terminal its full identity is restored too.
func (m *Manager) reseed(ctx context.Context, id string) error {
	term, ok, err := m.store.GetTerminal(ctx, id)
	if err != nil {
		return fmt.Errorf("restore identity: %w", err)
	}
	values := map[string]any{model.KeyDeviceID: id}
	if ok {
		values = model.IdentityConfig(term)
	}
	if err := m.store.PutConfigs(ctx, values); err != nil {
		return fmt.Errorf("restore identity: %w", err)
	}
	return nil
}

func (m *Manager) newestTerminal(ctx context.Context) (model.Terminal, bool, error) {
	terms, err := m.store.ListTerminals(ctx)
	if err != nil {
		return model.Terminal{}, false, fmt.Errorf("restore identity: %w", err)
	}
	if len(terms) == 0 {
		return model.Terminal{}, false, nil
	}
	newest := terms[0]
	for _, t := range terms[1:] {
		if t.UpdatedAt.After(newest.UpdatedAt) {
			newest = t
		}
	}
	return newest, true, nil
}

func (m *Manager) saveBackup(id string) {
	if err := m.backup.Save(id); err != nil {
		slog.Warn("backup marker write failed", "terminal_id", id, "error", err)
	}
}
