package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitepulse/kioskd/internal/config"
	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/remote"
	"github.com/sitepulse/kioskd/internal/store"
	"github.com/sitepulse/kioskd/internal/testutil"
)

var testRoster = []model.Employee{
	{ID: "emp-1", FirstName: "Ana", LastName: "Silva", PIN: "1111", JobTitle: "Site Engineer"},
	{ID: "emp-2", FirstName: "Ben", LastName: "Okafor", PIN: "2222", JobTitle: "Foreman"},
	{ID: "emp-3", FirstName: "Chen", LastName: "Wei", PIN: "3333"},
}

type testEnv struct {
	dir    string
	db     string
	remote *testutil.FakeRemote
	opts   *RootOptions
}

// newTestEnv returns a CLI environment backed by a temp database and a
// fake remote that accepts codes ABC123 (term-1) and DEF456 (term-2).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	fake := testutil.NewFakeRemote()

	for code, term := range map[string]remote.Activation{
		"ABC123": {DeviceID: "dev-1", TerminalID: "term-1", TerminalName: "North Gate", SiteID: "site-1", SiteName: "Harbour Tower", OrgID: "org-1", OrgName: "Acme Build"},
		"DEF456": {DeviceID: "dev-1", TerminalID: "term-2", TerminalName: "Loading Dock", SiteID: "site-2", SiteName: "Depot", OrgID: "org-1", OrgName: "Acme Build"},
	} {
		fake.AddActivation(code, term)
		fake.SetConfig(term.TerminalID, model.KioskConfig{
			OrgID: term.OrgID, OrgName: term.OrgName,
			SiteID: term.SiteID, SiteName: term.SiteName,
			KioskName: term.TerminalName,
		})
	}
	fake.SetRoster("org-1", testRoster)

	clock := testutil.NewDeterministicClock(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), time.Minute)
	return &testEnv{
		dir:    dir,
		db:     filepath.Join(dir, "kiosk.db"),
		remote: fake,
		opts: &RootOptions{
			NewRemote: func(config.Config) remote.Client { return fake },
			Now:       clock.Now,
			Location:  time.UTC,
		},
	}
}

// run executes the CLI and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(e.opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "kioskd %v\n%s", args, out)
	return out
}

// openStore opens the env database directly. Callers close it before
// running commands.
func (e *testEnv) openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(e.db)
	require.NoError(t, err)
	return s
}
