package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitepulse/kioskd/internal/model"
)

// AppendLog inserts a new attendance entry as PENDING and returns it with
// its assigned seq. Appending an id that already exists is an error.
func (s *Store) AppendLog(ctx context.Context, l model.AttendanceLog) (model.AttendanceLog, error) {
	if l.ID == "" {
		return model.AttendanceLog{}, fmt.Errorf("append log: empty id")
	}
	l.Status = model.StatusPending

	var photo any
	if len(l.Photo) > 0 {
		photo = l.Photo
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_logs
		(id, employee_id, org_id, site_id, kiosk_id, direction, ts, photo, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING')
	`,
		l.ID,
		l.EmployeeID,
		l.OrgID,
		l.SiteID,
		l.KioskID,
		string(l.Direction),
		millis(l.Timestamp),
		photo,
	)
	if err != nil {
		return model.AttendanceLog{}, fmt.Errorf("append log: %w", err)
	}

	l.Seq, err = res.LastInsertId()
	if err != nil {
		return model.AttendanceLog{}, fmt.Errorf("append log: last insert id: %w", err)
	}
	return l, nil
}

// GetLog retrieves one attendance entry by id.
func (s *Store) GetLog(ctx context.Context, id string) (model.AttendanceLog, bool, error) {
	row := s.db.QueryRowContext(ctx, selectLogs+` WHERE id = ?`, id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceLog{}, false, nil
	}
	if err != nil {
		return model.AttendanceLog{}, false, fmt.Errorf("get log %q: %w", id, err)
	}
	return l, true, nil
}

// PendingLogs returns every PENDING entry in creation order (seq ASC).
// Returns an empty slice (not nil) when nothing is pending.
func (s *Store) PendingLogs(ctx context.Context) ([]model.AttendanceLog, error) {
	return s.queryLogs(ctx, selectLogs+` WHERE status = 'PENDING' ORDER BY seq ASC`)
}

// CountPending returns the number of PENDING entries.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_logs WHERE status = 'PENDING'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// ListLogs returns every entry in creation order.
func (s *Store) ListLogs(ctx context.Context) ([]model.AttendanceLog, error) {
	return s.queryLogs(ctx, selectLogs+` ORDER BY seq ASC`)
}

// MarkSynced moves the given entries from PENDING to SYNCED in one
// transaction and returns how many rows changed. Entries already SYNCED are
// left untouched, so the transition happens at most once per entry.
func (s *Store) MarkSynced(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mark synced: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := millis(s.now())
	changed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE attendance_logs
			SET status = 'SYNCED', synced_at = ?
			WHERE id = ? AND status = 'PENDING'
		`, now, id)
		if err != nil {
			return 0, fmt.Errorf("mark synced %q: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("mark synced: rows affected: %w", err)
		}
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mark synced: commit: %w", err)
	}
	return changed, nil
}

// ClearLogs removes every attendance entry. Only a full reset should call this.
func (s *Store) ClearLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attendance_logs`); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}

const selectLogs = `
	SELECT seq, id, employee_id, org_id, site_id, kiosk_id, direction, ts, photo, status
	FROM attendance_logs`

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]model.AttendanceLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	logs := []model.AttendanceLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return logs, nil
}

func scanLog(r rowScanner) (model.AttendanceLog, error) {
	var l model.AttendanceLog
	var direction, status string
	var ts int64
	var photo []byte
	if err := r.Scan(&l.Seq, &l.ID, &l.EmployeeID, &l.OrgID, &l.SiteID, &l.KioskID, &direction, &ts, &photo, &status); err != nil {
		return model.AttendanceLog{}, err
	}
	l.Direction = model.Direction(direction)
	l.Status = model.LogStatus(status)
	l.Timestamp = fromMillis(ts)
	if len(photo) > 0 {
		l.Photo = photo
	}
	return l, nil
}

// LogsForEmployee returns every entry for one employee in creation order.
func (s *Store) LogsForEmployee(ctx context.Context, employeeID string) ([]model.AttendanceLog, error) {
	return s.queryLogs(ctx, selectLogs+` WHERE employee_id = ? ORDER BY seq ASC`, employeeID)
}
