package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitepulse/kioskd/internal/model"
)

// GetEmployee retrieves a cached employee by id.
func (s *Store) GetEmployee(ctx context.Context, id string) (model.Employee, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, pin_code, job_title, avatar_url
		FROM employees WHERE id = ?
	`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Employee{}, false, nil
	}
	if err != nil {
		return model.Employee{}, false, fmt.Errorf("get employee %q: %w", id, err)
	}
	return e, true, nil
}

// FindEmployeeByPIN returns the cached employee of organization orgID whose
// PIN matches exactly. When more than one employee shares a PIN the lowest id
// wins. A roster cached for another organization matches nothing.
func (s *Store) FindEmployeeByPIN(ctx context.Context, orgID, pin string) (model.Employee, bool, error) {
	rosterOrg, err := s.GetString(ctx, model.KeyRosterOrgID)
	if err != nil {
		return model.Employee{}, false, fmt.Errorf("find employee by pin: %w", err)
	}
	if orgID == "" || rosterOrg != orgID {
		return model.Employee{}, false, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, pin_code, job_title, avatar_url
		FROM employees
		WHERE pin_code = ?
		ORDER BY id COLLATE BINARY ASC
		LIMIT 1
	`, pin)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Employee{}, false, nil
	}
	if err != nil {
		return model.Employee{}, false, fmt.Errorf("find employee by pin: %w", err)
	}
	return e, true, nil
}

// ListEmployees returns the cached roster ordered by name then id.
// Returns an empty slice (not nil) when the cache is empty.
func (s *Store) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, pin_code, job_title, avatar_url
		FROM employees
		ORDER BY first_name ASC, last_name ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// PutEmployees upserts employees in one transaction without removing others.
// The sync path never uses this; a pull replaces the roster via ApplyPull.
func (s *Store) PutEmployees(ctx context.Context, employees []model.Employee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put employees: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEmployeesTx(ctx, tx, employees); err != nil {
		return fmt.Errorf("put employees: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put employees: commit: %w", err)
	}
	return nil
}

// ReplaceEmployees swaps the whole roster for the employees of organization
// orgID in one transaction. Employees absent from the new snapshot disappear.
// This is a full replacement, not a merge.
func (s *Store) ReplaceEmployees(ctx context.Context, orgID string, employees []model.Employee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace employees: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
		return fmt.Errorf("replace employees: clear: %w", err)
	}
	if err := insertEmployeesTx(ctx, tx, employees); err != nil {
		return fmt.Errorf("replace employees: %w", err)
	}
	if err := s.putConfigsTx(ctx, tx, map[string]any{model.KeyRosterOrgID: orgID}); err != nil {
		return fmt.Errorf("replace employees: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace employees: commit: %w", err)
	}
	return nil
}

// DeleteEmployee removes one cached employee.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete employee %q: %w", id, err)
	}
	return nil
}

// ClearEmployees empties the roster cache.
func (s *Store) ClearEmployees(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM employees`); err != nil {
		return fmt.Errorf("clear employees: %w", err)
	}
	return nil
}

// insertEmployeesTx upserts so a snapshot carrying the same id twice keeps
// one entry (the last).
func insertEmployeesTx(ctx context.Context, tx *sql.Tx, employees []model.Employee) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO employees (id, first_name, last_name, pin_code, job_title, avatar_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			pin_code = excluded.pin_code,
			job_title = excluded.job_title,
			avatar_url = excluded.avatar_url
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range employees {
		if e.ID == "" {
			return fmt.Errorf("employee with empty id")
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.FirstName, e.LastName, e.PIN, e.JobTitle, e.AvatarURL); err != nil {
			return fmt.Errorf("insert employee %q: %w", e.ID, err)
		}
	}
	return nil
}

func scanEmployee(r rowScanner) (model.Employee, error) {
	var e model.Employee
	err := r.Scan(&e.ID, &e.FirstName, &e.LastName, &e.PIN, &e.JobTitle, &e.AvatarURL)
	return e, err
}
