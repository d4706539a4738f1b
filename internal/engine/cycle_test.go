package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/store"
	"github.com/sitepulse/kioskd/internal/testutil"
)

func TestCycle_NoIdentity(t *testing.T) {
	s := setupStore(t)
	rc := testutil.NewFakeRemote()
	e := New(s, rc)

	res := e.Cycle(context.Background(), TriggerManual, false)
	assert.True(t, res.NoIdentity)
	assert.False(t, res.Progress())
	assert.Zero(t, rc.PushCalls())
	assert.Zero(t, rc.ConfigCalls())
}

func TestCycle_PushesInOrderInBatches(t *testing.T) {
	f := newFixture(t)
	ids := f.appendPending(t, 12)

	res := f.engine.Cycle(context.Background(), TriggerManual, true)
	require.NoError(t, res.Err())
	assert.Equal(t, 12, res.Pushed)
	assert.Equal(t, 3, res.Batches)

	batches := f.remote.AcceptedBatches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Len(t, batches[2], 2)
	assert.Equal(t, ids, f.remote.AcceptedIDs())
	assert.Empty(t, f.pendingIDs(t))
}

func TestCycle_CustomBatchSize(t *testing.T) {
	f := newFixture(t, WithBatchSize(2))
	f.appendPending(t, 5)

	res := f.engine.Cycle(context.Background(), TriggerManual, true)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 2, f.engine.BatchSize())
}

func TestWithBatchSize_OutOfRangeIgnored(t *testing.T) {
	s := setupStore(t)
	for _, n := range []int{0, -1, MaxBatchSize + 1} {
		e := New(s, testutil.NewFakeRemote(), WithBatchSize(n))
		assert.Equal(t, DefaultBatchSize, e.BatchSize(), n)
	}
}

func TestCycle_FailedBatchStopsPush(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.appendPending(t, 12)
	f.remote.FailPushCall(2)

	res := f.engine.Cycle(ctx, TriggerInterval, true)
	require.Error(t, res.PushErr)
	assert.Equal(t, 5, res.Pushed)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 2, f.remote.PushCalls(), "no batch after the failed one is attempted")
	assert.Equal(t, ids[5:], f.pendingIDs(t), "failed and later batches stay pending in order")
	assert.True(t, res.Pulled, "pull runs even when push fails")

	res = f.engine.Cycle(ctx, TriggerInterval, true)
	require.NoError(t, res.Err())
	assert.Equal(t, 7, res.Pushed)
	assert.Equal(t, ids, f.remote.AcceptedIDs(), "every entry delivered exactly once in creation order")
	assert.Empty(t, f.pendingIDs(t))
}

func TestCycle_IdempotentWhenConverged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appendPending(t, 3)

	first := f.engine.Cycle(ctx, TriggerInterval, true)
	require.NoError(t, first.Err())
	calls := f.remote.PushCalls()
	logsBefore, err := f.store.ListLogs(ctx)
	require.NoError(t, err)

	second := f.engine.Cycle(ctx, TriggerInterval, true)
	require.NoError(t, second.Err())
	assert.Zero(t, second.Pushed)
	assert.Equal(t, calls, f.remote.PushCalls(), "empty queue makes no push call")

	logsAfter, err := f.store.ListLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, logsBefore, logsAfter)

	employees, err := f.store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, len(testRoster))
}

func TestCycle_PullReplacesRosterAndConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	kc := testConfig
	kc.SiteName = "Harbour Tower East"
	kc.PhotoRequired = true
	f.remote.SetConfig("term-1", kc)
	f.remote.SetRoster("org-1", []model.Employee{
		{ID: "emp-3", FirstName: "Chen", LastName: "Wei", PIN: "3333"},
	})

	res := f.engine.Cycle(ctx, TriggerInterval, true)
	require.NoError(t, res.Err())
	assert.True(t, res.Pulled)
	assert.Equal(t, 1, res.RosterSize)

	employees, err := f.store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 1, "roster is replaced, not merged")
	assert.Equal(t, "emp-3", employees[0].ID)

	site, err := f.store.GetString(ctx, model.KeySiteName)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Tower East", site)

	photo, err := f.store.GetBool(ctx, model.KeyPhotoRequired)
	require.NoError(t, err)
	assert.True(t, photo)

	term, ok, err := f.store.GetTerminal(ctx, "term-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Harbour Tower East", term.SiteName)

	last, err := f.store.GetString(ctx, model.KeyLastSyncAt)
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}

func TestCycle_PullCreatesMissingTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.DeleteTerminal(ctx, "term-1"))

	res := f.engine.Cycle(ctx, TriggerInterval, true)
	require.NoError(t, res.Err())

	_, ok, err := f.store.GetTerminal(ctx, "term-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCycle_RosterFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	kc := testConfig
	kc.SiteName = "Somewhere Else"
	f.remote.SetConfig("term-1", kc)
	f.remote.SetRoster("org-1", nil)
	f.remote.FailRoster(true)

	res := f.engine.Cycle(ctx, TriggerInterval, true)
	require.Error(t, res.PullErr)
	assert.False(t, res.Pulled)

	employees, err := f.store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, len(testRoster))

	site, err := f.store.GetString(ctx, model.KeySiteName)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Tower", site, "config is not written when the roster fetch fails")
}

func TestCycle_ConfigFailureSkipsRoster(t *testing.T) {
	f := newFixture(t)
	f.remote.FailConfig(true)

	res := f.engine.Cycle(context.Background(), TriggerInterval, true)
	require.Error(t, res.PullErr)
	assert.Zero(t, f.remote.RosterCalls())
}

func TestCycle_OfflineKeepsEverythingPending(t *testing.T) {
	f := newFixture(t)
	ids := f.appendPending(t, 2)
	f.remote.SetOffline(true)

	res := f.engine.Cycle(context.Background(), TriggerInterval, true)
	assert.ErrorIs(t, res.PushErr, testutil.ErrOffline)
	assert.ErrorIs(t, res.PullErr, testutil.ErrOffline)
	assert.Equal(t, ids, f.pendingIDs(t))
	assert.Equal(t, StateIdle, f.engine.State(), "busy flag released on error")

	f.remote.SetOffline(false)
	res = f.engine.Cycle(context.Background(), TriggerOnline, true)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Pushed)
}

func TestCycle_ConcurrentTriggersDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appendPending(t, 1)
	release := f.remote.HoldPushes()

	var wg sync.WaitGroup
	var first Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.engine.Cycle(ctx, TriggerInterval, true)
	}()

	require.Eventually(t, func() bool { return f.remote.PushCalls() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, f.engine.State())

	for _, trig := range []Trigger{TriggerManual, TriggerOnline, TriggerNudge} {
		res := f.engine.Cycle(ctx, trig, false)
		assert.True(t, res.Skipped, trig)
	}

	release()
	wg.Wait()

	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Pushed)
	assert.Equal(t, 1, f.remote.PushCalls(), "dropped triggers made no remote calls")
	assert.Equal(t, 1, f.remote.ConfigCalls())
	assert.Equal(t, StateIdle, f.engine.State())
}

func TestCycle_NotifyOnlyInteractiveProgress(t *testing.T) {
	ctx := context.Background()
	var notified []Result
	f := newFixture(t, WithNotifier(func(r Result) { notified = append(notified, r) }))

	f.engine.Cycle(ctx, TriggerInterval, true)
	assert.Empty(t, notified, "silent cycles never signal")

	f.remote.SetOffline(true)
	f.engine.Cycle(ctx, TriggerManual, false)
	assert.Empty(t, notified, "no-op cycles never signal")

	f.remote.SetOffline(false)
	res := f.engine.SyncNow(ctx)
	require.Len(t, notified, 1)
	assert.Equal(t, res, notified[0])
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appendPending(t, 3)

	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 3, st.Pending)
	assert.True(t, st.LastCycleAt.IsZero())

	f.remote.FailRoster(true)
	f.engine.SyncNow(ctx)

	st, err = f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, TriggerManual, st.LastTrigger)
	assert.Equal(t, 3, st.LastPushed)
	assert.False(t, st.LastPulled)
	assert.Contains(t, st.LastError, "fetch employees")
	assert.Zero(t, st.Pending)
}

func TestCycle_PullDiscardedAfterSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := model.Terminal{ID: "term-2", Name: "Quarry", SiteID: "site-9", SiteName: "Quarry", OrgID: "org-2"}
	require.NoError(t, f.store.PutTerminal(ctx, other))

	release := f.remote.HoldConfig()
	done := make(chan Result, 1)
	go func() { done <- f.engine.Cycle(ctx, TriggerInterval, true) }()

	require.Eventually(t, func() bool { return f.remote.ConfigCalls() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, f.store.CommitIdentity(ctx, other, model.IdentityConfig(other)))
	release()

	res := <-done
	assert.False(t, res.Pulled)
	assert.ErrorIs(t, res.PullErr, store.ErrIdentityChanged)

	id, err := f.store.GetString(ctx, model.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "term-2", id, "the switch survives the in-flight pull")

	site, err := f.store.GetString(ctx, model.KeySiteID)
	require.NoError(t, err)
	assert.Equal(t, "site-9", site)

	employees, err := f.store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Empty(t, employees, "org-1 roster is not written back")
}
