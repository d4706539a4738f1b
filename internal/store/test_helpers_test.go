package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitepulse/kioskd/internal/model"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedIdentity(t *testing.T, s *Store, id string) model.Terminal {
	t.Helper()
	term := model.Terminal{
		ID:       id,
		Name:     "Gate " + id,
		SiteID:   "site-" + id,
		SiteName: "Site " + id,
		OrgID:    "org-1",
		OrgName:  "Acme Build",
	}
	if err := s.CommitIdentity(context.Background(), term, model.IdentityConfig(term)); err != nil {
		t.Fatalf("CommitIdentity() failed: %v", err)
	}
	return term
}

func appendTestLog(t *testing.T, s *Store, id, employeeID string, dir model.Direction, ts time.Time) model.AttendanceLog {
	t.Helper()
	l, err := s.AppendLog(context.Background(), model.AttendanceLog{
		ID:         id,
		EmployeeID: employeeID,
		OrgID:      "org-1",
		SiteID:     "site-1",
		KioskID:    "k-1",
		Direction:  dir,
		Timestamp:  ts,
	})
	if err != nil {
		t.Fatalf("AppendLog(%s) failed: %v", id, err)
	}
	return l
}
