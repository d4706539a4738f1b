package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitepulse/kioskd/internal/model"
)

// GetTerminal retrieves a terminal record by id.
// Returns found=false if no such record exists.
func (s *Store) GetTerminal(ctx context.Context, id string) (model.Terminal, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, site_id, site_name, org_id, org_name, logo_url, updated_at
		FROM terminals
		WHERE id = ?
	`, id)

	t, err := scanTerminal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Terminal{}, false, nil
	}
	if err != nil {
		return model.Terminal{}, false, fmt.Errorf("get terminal %q: %w", id, err)
	}
	return t, true, nil
}

// PutTerminal creates or replaces a terminal record.
func (s *Store) PutTerminal(ctx context.Context, t model.Terminal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put terminal: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.putTerminalTx(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put terminal: commit: %w", err)
	}
	return nil
}

// ListTerminals returns every paired identity ordered by name then id.
// Returns an empty slice (not nil) when none exist.
func (s *Store) ListTerminals(ctx context.Context) ([]model.Terminal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, site_id, site_name, org_id, org_name, logo_url, updated_at
		FROM terminals
		ORDER BY name ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query terminals: %w", err)
	}
	defer rows.Close()

	terminals := []model.Terminal{}
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan terminal: %w", err)
		}
		terminals = append(terminals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terminals: %w", err)
	}
	return terminals, nil
}

// CountTerminals returns the number of paired identities.
func (s *Store) CountTerminals(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM terminals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count terminals: %w", err)
	}
	return n, nil
}

// DeleteTerminal removes a terminal record. Nothing in the sync path calls this.
func (s *Store) DeleteTerminal(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM terminals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete terminal %q: %w", id, err)
	}
	return nil
}

// ClearTerminals removes every terminal record.
func (s *Store) ClearTerminals(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM terminals`); err != nil {
		return fmt.Errorf("clear terminals: %w", err)
	}
	return nil
}

// CommitIdentity upserts t and writes values into configuration in a single
// transaction. Either both land or neither does.
//
// When t is not the terminal active before the call, the previous terminal's
// photo policy is dropped unless values sets one. A roster cached for an
// organization other than t's is cleared.
func (s *Store) CommitIdentity(ctx context.Context, t model.Terminal, values map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit identity: begin tx: %w", err)
	}
	defer tx.Rollback()

	previous, err := stringTx(ctx, tx, model.KeyDeviceID)
	if err != nil {
		return fmt.Errorf("commit identity: %w", err)
	}
	rosterOrg, err := stringTx(ctx, tx, model.KeyRosterOrgID)
	if err != nil {
		return fmt.Errorf("commit identity: %w", err)
	}

	if err := s.putTerminalTx(ctx, tx, t); err != nil {
		return fmt.Errorf("commit identity: %w", err)
	}

	if _, set := values[model.KeyPhotoRequired]; previous != t.ID && !set {
		if _, err := tx.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, model.KeyPhotoRequired); err != nil {
			return fmt.Errorf("commit identity: clear photo policy: %w", err)
		}
	}
	if rosterOrg != "" && rosterOrg != t.OrgID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
			return fmt.Errorf("commit identity: clear roster: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, model.KeyRosterOrgID); err != nil {
			return fmt.Errorf("commit identity: clear roster: %w", err)
		}
	}

	if err := s.putConfigsTx(ctx, tx, values); err != nil {
		return fmt.Errorf("commit identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit identity: commit: %w", err)
	}
	return nil
}

func (s *Store) putTerminalTx(ctx context.Context, tx *sql.Tx, t model.Terminal) error {
	if t.ID == "" {
		return fmt.Errorf("put terminal: empty id")
	}
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO terminals (id, name, site_id, site_name, org_id, org_name, logo_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			site_id = excluded.site_id,
			site_name = excluded.site_name,
			org_id = excluded.org_id,
			org_name = excluded.org_name,
			logo_url = excluded.logo_url,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.SiteID, t.SiteName, t.OrgID, t.OrgName, t.LogoURL, millis(updated))
	if err != nil {
		return fmt.Errorf("put terminal %q: %w", t.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerminal(r rowScanner) (model.Terminal, error) {
	var t model.Terminal
	var updated int64
	if err := r.Scan(&t.ID, &t.Name, &t.SiteID, &t.SiteName, &t.OrgID, &t.OrgName, &t.LogoURL, &updated); err != nil {
		return model.Terminal{}, err
	}
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}
