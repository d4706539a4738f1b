package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/remote"
	"github.com/sitepulse/kioskd/internal/store"
	"github.com/sitepulse/kioskd/internal/testutil"
)

// memBackup is an in-memory Backup with failure injection.
type memBackup struct {
	mu       sync.Mutex
	id       string
	saveErr  error
	loadErr  error
	saves    int
	clearErr error
}

func (b *memBackup) Load() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id, b.loadErr
}

func (b *memBackup) Save(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.saveErr != nil {
		return b.saveErr
	}
	b.id = id
	return nil
}

func (b *memBackup) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clearErr != nil {
		return b.clearErr
	}
	b.id = ""
	return nil
}

var testActivation = remote.Activation{
	DeviceID:      "dev-1",
	TerminalID:    "term-1",
	TerminalName:  "North Gate",
	SiteID:        "site-1",
	SiteName:      "Harbour Tower",
	OrgID:         "org-1",
	OrgName:       "Acme Build",
	PhotoRequired: true,
}

func newTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kiosk.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(t *testing.T) (*Manager, *store.Store, *testutil.FakeRemote, *memBackup) {
	t.Helper()
	s := newTestStore(t)
	rc := testutil.NewFakeRemote()
	rc.AddActivation("ABC123", testActivation)
	b := &memBackup{}
	return NewManager(s, rc, b), s, rc, b
}

func TestActivate_Success(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)

	term, err := m.Activate(ctx, " abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "term-1", term.ID)

	id, err := s.GetString(ctx, model.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "term-1", id)

	name, err := s.GetString(ctx, model.KeySiteName)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Tower", name)

	photo, err := s.GetBool(ctx, model.KeyPhotoRequired)
	require.NoError(t, err)
	assert.True(t, photo)

	got, ok, err := s.GetTerminal(ctx, "term-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "North Gate", got.Name)

	assert.Equal(t, "term-1", b.id)
}

func TestActiveTerminalID(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)

	id, err := m.ActiveTerminalID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = m.Activate(ctx, "ABC123")
	require.NoError(t, err)

	id, err = m.ActiveTerminalID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "term-1", id)
}

func TestActivate_InvalidCodeNeverCallsRemote(t *testing.T) {
	ctx := context.Background()
	m, s, rc, _ := newTestManager(t)

	_, err := m.Activate(ctx, "AB12")
	assert.ErrorIs(t, err, model.ErrInvalidCode)
	assert.Equal(t, 0, rc.ActivateCalls())

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestActivate_RejectedPersistsNothing(t *testing.T) {
	ctx := context.Background()
	m, s, rc, b := newTestManager(t)

	_, err := m.Activate(ctx, "ZZZ999")
	assert.ErrorIs(t, err, model.ErrActivationRejected)
	assert.Equal(t, 1, rc.ActivateCalls())

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, b.id)
}

func TestActivate_NetworkFailureIsNotRejection(t *testing.T) {
	ctx := context.Background()
	m, s, rc, _ := newTestManager(t)
	rc.SetOffline(true)

	_, err := m.Activate(ctx, "ABC123")
	require.Error(t, err)
	assert.False(t, model.IsCode(err, model.ErrCodeActivationRejected))
	assert.ErrorIs(t, err, testutil.ErrOffline)

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestActivate_BackupFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)
	b.saveErr = errors.New("disk full")

	_, err := m.Activate(ctx, "ABC123")
	require.NoError(t, err)

	id, err := s.GetString(ctx, model.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "term-1", id)
}

func TestActivate_FallsBackToDeviceID(t *testing.T) {
	ctx := context.Background()
	m, _, rc, _ := newTestManager(t)
	act := testActivation
	act.TerminalID = ""
	rc.AddActivation("DEF456", act)

	term, err := m.Activate(ctx, "DEF456")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", term.ID)
}

func TestRestoreIdentity_Unpaired(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	_, err := m.RestoreIdentity(context.Background())
	assert.ErrorIs(t, err, model.ErrNeedsActivation)
}

func TestRestoreIdentity_PrimaryRepairsBackup(t *testing.T) {
	ctx := context.Background()
	m, _, _, b := newTestManager(t)
	_, err := m.Activate(ctx, "ABC123")
	require.NoError(t, err)
	b.id = ""

	id, err := m.RestoreIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity{TerminalID: "term-1", Source: SourcePrimary}, id)
	assert.Equal(t, "term-1", b.id)
}

func TestRestoreIdentity_PrimaryWinsOverStaleBackup(t *testing.T) {
	ctx := context.Background()
	m, _, _, b := newTestManager(t)
	_, err := m.Activate(ctx, "ABC123")
	require.NoError(t, err)
	b.id = "term-old"

	id, err := m.RestoreIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "term-1", id.TerminalID)
	assert.Equal(t, "term-1", b.id)
}

func TestRestoreIdentity_FromBackupAfterWipe(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)
	b.id = "term-9"

	id, err := m.RestoreIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "term-9", id.TerminalID)
	assert.Equal(t, SourceBackup, id.Source)
	assert.True(t, id.Healed)

	primary, err := s.GetString(ctx, model.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "term-9", primary)

	_, ok, err := s.GetTerminal(ctx, "term-9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestoreIdentity_BackupRestoresRegistryIdentity(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)
	require.NoError(t, s.PutTerminal(ctx, model.Terminal{ID: "term-2", Name: "Loading Dock", SiteName: "Depot"}))
	b.id = "term-2"

	id, err := m.RestoreIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, id.Healed)

	site, err := s.GetString(ctx, model.KeySiteName)
	require.NoError(t, err)
	assert.Equal(t, "Depot", site)
}

func TestRestoreIdentity_UnreadableBackupTreatedAsAbsent(t *testing.T) {
	m, _, _, b := newTestManager(t)
	b.loadErr = errors.New("corrupt")

	_, err := m.RestoreIdentity(context.Background())
	assert.ErrorIs(t, err, model.ErrNeedsActivation)
}

func TestRestoreIdentity_AdoptsNewestTerminal(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), time.Minute)
	s := newTestStore(t, store.WithNow(clock.Now))
	b := &memBackup{}
	m := NewManager(s, testutil.NewFakeRemote(), b)

	require.NoError(t, s.PutTerminal(ctx, model.Terminal{ID: "term-a", Name: "A"}))
	require.NoError(t, s.PutTerminal(ctx, model.Terminal{ID: "term-b", Name: "B"}))

	id, err := m.RestoreIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity{TerminalID: "term-b", Source: SourceRegistry}, id)
	assert.Equal(t, "term-b", b.id)
}

func TestSelfHeal_SynthesizesFromConfig(t *testing.T) {
	ctx := context.Background()
	m, s, _, _ := newTestManager(t)
	require.NoError(t, s.PutConfigs(ctx, map[string]any{
		model.KeyDeviceID:  "term-5",
		model.KeyKioskName: "Side Door",
		model.KeySiteName:  "Harbour Tower",
		model.KeyOrgID:     "org-1",
	}))

	healed, err := m.SelfHeal(ctx)
	require.NoError(t, err)
	assert.True(t, healed)

	term, ok, err := s.GetTerminal(ctx, "term-5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Side Door", term.Name)
	assert.Equal(t, "Harbour Tower", term.SiteName)
	assert.Equal(t, "org-1", term.OrgID)

	healed, err = m.SelfHeal(ctx)
	require.NoError(t, err)
	assert.False(t, healed, "second heal is a no-op")
}

func TestSelfHeal_NoIdentityNoop(t *testing.T) {
	m, s, _, _ := newTestManager(t)

	healed, err := m.SelfHeal(context.Background())
	require.NoError(t, err)
	assert.False(t, healed)

	n, err := s.CountTerminals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReset_ClearsBothChannels(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)
	_, err := m.Activate(ctx, "ABC123")
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))
	assert.Empty(t, b.id)

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	_, err = m.RestoreIdentity(ctx)
	assert.ErrorIs(t, err, model.ErrNeedsActivation)
}

func TestReset_BackupFailureKeepsStore(t *testing.T) {
	ctx := context.Background()
	m, s, _, b := newTestManager(t)
	_, err := m.Activate(ctx, "ABC123")
	require.NoError(t, err)
	b.clearErr = errors.New("read-only")

	require.Error(t, m.Reset(ctx))

	id, err := s.GetString(ctx, model.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "term-1", id)
}
