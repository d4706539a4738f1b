package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitepulse/kioskd/internal/model"
)

// ErrIdentityChanged is returned by ApplyPull when the active terminal is no
// longer the one the pull was made for.
var ErrIdentityChanged = errors.New("active terminal changed during pull")

// ApplyPull commits the result of a successful config and roster pull in
// one transaction: the terminal record is upserted, configuration values are
// overwritten and the roster cache is fully replaced. A failure leaves all
// three untouched.
//
// The pull is only applied while t is still the active terminal. If the
// identity was switched after the fetch started, nothing is written and
// ErrIdentityChanged is returned.
func (s *Store) ApplyPull(ctx context.Context, t model.Terminal, values map[string]any, employees []model.Employee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply pull: begin tx: %w", err)
	}
	defer tx.Rollback()

	active, err := stringTx(ctx, tx, model.KeyDeviceID)
	if err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}
	if active != t.ID {
		return fmt.Errorf("apply pull for %q (active %q): %w", t.ID, active, ErrIdentityChanged)
	}

	if err := s.putTerminalTx(ctx, tx, t); err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}
	if err := s.putConfigsTx(ctx, tx, values); err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
		return fmt.Errorf("apply pull: clear employees: %w", err)
	}
	if err := insertEmployeesTx(ctx, tx, employees); err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}
	if err := s.putConfigsTx(ctx, tx, map[string]any{model.KeyRosterOrgID: t.OrgID}); err != nil {
		return fmt.Errorf("apply pull: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply pull: commit: %w", err)
	}
	return nil
}
