// Package presence derives who is currently on site from the cached roster
// and the local attendance log.
//
// Presence is never stored. It is recomputed on demand; the cost is linear in
// a small local dataset.
package presence

import (
	"context"
	"sort"
	"time"

	"github.com/sitepulse/kioskd/internal/model"
)

// Entry is one row of the staff list.
type Entry struct {
	Employee model.Employee
	Present  bool

	// At is the timestamp of the latest event: "since" when present,
	// "out at" otherwise. Zero if the employee has no events.
	At time.Time
}

// Since returns the arrival time when present.
func (e Entry) Since() (time.Time, bool) {
	return e.At, e.Present
}

// OutAt returns the departure time when absent after at least one event.
func (e Entry) OutAt() (time.Time, bool) {
	return e.At, !e.Present && !e.At.IsZero()
}

// Latest returns the most recent event among logs by event timestamp.
// Ties go to the entry created last (higher Seq), so a replayed batch with
// skewed clocks still resolves deterministically.
func Latest(logs []model.AttendanceLog) (model.AttendanceLog, bool) {
	var best model.AttendanceLog
	found := false
	for _, l := range logs {
		if !found || later(l, best) {
			best = l
			found = true
		}
	}
	return best, found
}

func later(a, b model.AttendanceLog) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.Seq > b.Seq
	}
	return a.Timestamp.After(b.Timestamp)
}

// Derive computes one Entry per employee, in the order employees are given.
// An employee is present iff their chronologically latest event is IN.
func Derive(employees []model.Employee, logs []model.AttendanceLog) []Entry {
	byEmployee := make(map[string][]model.AttendanceLog, len(employees))
	for _, l := range logs {
		byEmployee[l.EmployeeID] = append(byEmployee[l.EmployeeID], l)
	}

	entries := make([]Entry, 0, len(employees))
	for _, emp := range employees {
		entry := Entry{Employee: emp}
		if last, ok := Latest(byEmployee[emp.ID]); ok {
			entry.Present = last.Direction == model.DirectionIn
			entry.At = last.Timestamp
		}
		entries = append(entries, entry)
	}
	return entries
}

// NextDirection is the direction a new clock action should take for an
// employee with the given history: OUT when currently present, IN otherwise.
func NextDirection(logs []model.AttendanceLog) model.Direction {
	if last, ok := Latest(logs); ok && last.Direction == model.DirectionIn {
		return model.DirectionOut
	}
	return model.DirectionIn
}

// Source is the read side of the local store the staff list needs.
type Source interface {
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	ListLogs(ctx context.Context) ([]model.AttendanceLog, error)
}

// Board loads the roster and log history from src and derives the staff
// list, present employees first, then by name.
func Board(ctx context.Context, src Source) ([]Entry, error) {
	employees, err := src.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := src.ListLogs(ctx)
	if err != nil {
		return nil, err
	}

	entries := Derive(employees, logs)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Present != entries[j].Present {
			return entries[i].Present
		}
		return entries[i].Employee.FullName() < entries[j].Employee.FullName()
	})
	return entries, nil
}

// CountPresent returns how many entries are present.
func CountPresent(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Present {
			n++
		}
	}
	return n
}
