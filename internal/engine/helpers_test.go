package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/store"
	"github.com/sitepulse/kioskd/internal/testutil"
)

var (
	testStart = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	testTerminal = model.Terminal{
		ID:       "term-1",
		Name:     "North Gate",
		SiteID:   "site-1",
		SiteName: "Harbour Tower",
		OrgID:    "org-1",
		OrgName:  "Acme Build",
	}

	testRoster = []model.Employee{
		{ID: "emp-1", FirstName: "Ana", LastName: "Silva", PIN: "1111"},
		{ID: "emp-2", FirstName: "Ben", LastName: "Okafor", PIN: "2222"},
	}

	testConfig = model.KioskConfig{
		OrgID:     "org-1",
		OrgName:   "Acme Build",
		SiteID:    "site-1",
		SiteName:  "Harbour Tower",
		KioskName: "North Gate",
	}
)

type fixture struct {
	engine *Engine
	store  *store.Store
	remote *testutil.FakeRemote
	clock  *testutil.DeterministicClock
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kiosk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newFixture returns a paired engine whose remote knows the same terminal,
// config and roster as the local cache.
func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	ctx := context.Background()
	s := setupStore(t)
	require.NoError(t, s.CommitIdentity(ctx, testTerminal, model.IdentityConfig(testTerminal)))
	require.NoError(t, s.ReplaceEmployees(ctx, "org-1", testRoster))

	rc := testutil.NewFakeRemote()
	rc.SetConfig(testTerminal.ID, testConfig)
	rc.SetRoster("org-1", testRoster)

	clock := testutil.NewDeterministicClock(testStart, time.Second)
	opts = append([]EngineOption{WithNow(clock.Now)}, opts...)
	e := New(s, rc, opts...)
	t.Cleanup(e.Wait)

	return &fixture{engine: e, store: s, remote: rc, clock: clock}
}

// appendPending adds n PENDING entries and returns their ids in creation order.
func (f *fixture) appendPending(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		l, err := f.store.AppendLog(context.Background(), model.AttendanceLog{
			ID:         fmt.Sprintf("log-%02d", i+1),
			EmployeeID: "emp-1",
			OrgID:      "org-1",
			SiteID:     "site-1",
			KioskID:    "term-1",
			Direction:  model.DirectionIn,
			Timestamp:  f.clock.Now(),
		})
		require.NoError(t, err)
		ids[i] = l.ID
	}
	return ids
}

func (f *fixture) pendingIDs(t *testing.T) []string {
	t.Helper()
	pending, err := f.store.PendingLogs(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(pending))
	for i, l := range pending {
		ids[i] = l.ID
	}
	return ids
}

type fakeConn struct {
	online atomic.Bool
}

func (c *fakeConn) Online() bool {
	return c.online.Load()
}
