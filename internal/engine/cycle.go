package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/store"
)

// Result describes one cycle.
type Result struct {
	Trigger Trigger
	At      time.Time

	// Skipped is set when the trigger was dropped because a cycle was running.
	Skipped bool

	// NoIdentity is set when the cycle aborted for lack of an active terminal.
	NoIdentity bool

	Pushed  int
	Batches int
	PushErr error

	Pulled     bool
	RosterSize int
	PullErr    error
}

// Progress reports whether either phase moved state forward.
func (r Result) Progress() bool {
	return r.Pushed > 0 || r.Pulled
}

// Err returns the first phase error, if any.
func (r Result) Err() error {
	if r.PushErr != nil {
		return r.PushErr
	}
	return r.PullErr
}

// Cycle runs one guarded sync cycle. If another cycle is running the call
// returns immediately with Skipped set. Errors are reported in the Result,
// never returned: a failed cycle leaves state consistent for the next one.
func (e *Engine) Cycle(ctx context.Context, trigger Trigger, silent bool) Result {
	if !e.busy.CompareAndSwap(false, true) {
		slog.Debug("sync trigger dropped: cycle in progress", "trigger", trigger)
		return Result{Trigger: trigger, At: e.now(), Skipped: true}
	}
	defer e.busy.Store(false)

	res := e.cycle(ctx, trigger)

	e.mu.Lock()
	e.last = res
	e.mu.Unlock()

	if !silent && res.Progress() && e.notify != nil {
		e.notify(res)
	}
	return res
}

func (e *Engine) cycle(ctx context.Context, trigger Trigger) Result {
	res := Result{Trigger: trigger, At: e.now()}

	terminalID, err := e.store.GetString(ctx, model.KeyDeviceID)
	if err != nil {
		res.PushErr = fmt.Errorf("resolve identity: %w", err)
		slog.Warn("sync aborted", "trigger", trigger, "error", err)
		return res
	}
	if terminalID == "" {
		res.NoIdentity = true
		slog.Warn("sync aborted: no active terminal", "trigger", trigger)
		return res
	}

	slog.Debug("sync cycle starting", "trigger", trigger, "terminal_id", terminalID)

	res.Pushed, res.Batches, res.PushErr = e.pushPending(ctx)
	res.RosterSize, res.PullErr = e.pull(ctx, terminalID)
	res.Pulled = res.PullErr == nil

	if res.Progress() {
		if err := e.store.PutConfig(ctx, model.KeyLastSyncAt, res.At.UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("record last sync time failed", "error", err)
		}
	}

	slog.Info("sync cycle finished",
		"trigger", trigger,
		"terminal_id", terminalID,
		"pushed", res.Pushed,
		"batches", res.Batches,
		"pulled", res.Pulled,
		"roster", res.RosterSize,
	)
	return res
}

// pushPending sends every PENDING entry in creation order, one batch at a
// time, stopping at the first failed batch.
func (e *Engine) pushPending(ctx context.Context) (pushed, batches int, err error) {
	pending, err := e.store.PendingLogs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		batch := pending[start:end]

		if err := e.remote.PushLogs(ctx, batch); err != nil {
			slog.Warn("push batch failed",
				"batch", batches+1,
				"size", len(batch),
				"pending", len(pending)-start,
				"error", err,
			)
			return pushed, batches, fmt.Errorf("push batch %d: %w", batches+1, err)
		}

		ids := make([]string, len(batch))
		for i, l := range batch {
			ids[i] = l.ID
		}
		n, err := e.store.MarkSynced(ctx, ids)
		if err != nil {
			return pushed, batches, fmt.Errorf("mark batch %d synced: %w", batches+1, err)
		}
		pushed += n
		batches++
		slog.Debug("push batch accepted", "batch", batches, "size", len(batch))
	}
	return pushed, batches, nil
}

// pull refreshes configuration and the roster. Nothing is written unless
// both fetches succeed.
func (e *Engine) pull(ctx context.Context, terminalID string) (int, error) {
	kc, err := e.remote.FetchKioskConfig(ctx, terminalID)
	if err != nil {
		slog.Warn("config pull failed", "terminal_id", terminalID, "error", err)
		return 0, fmt.Errorf("fetch kiosk config: %w", err)
	}

	employees, err := e.remote.FetchEmployees(ctx, kc.OrgID)
	if err != nil {
		slog.Warn("roster pull failed", "terminal_id", terminalID, "organization_id", kc.OrgID, "error", err)
		return 0, fmt.Errorf("fetch employees: %w", err)
	}

	term := model.Terminal{
		ID:       terminalID,
		Name:     kc.KioskName,
		SiteID:   kc.SiteID,
		SiteName: kc.SiteName,
		OrgID:    kc.OrgID,
		OrgName:  kc.OrgName,
		LogoURL:  kc.OrgLogoURL,
	}
	if err := e.store.ApplyPull(ctx, term, model.PolicyConfig(terminalID, kc), employees); err != nil {
		if errors.Is(err, store.ErrIdentityChanged) {
			slog.Info("pull discarded: active terminal changed", "terminal_id", terminalID)
		}
		return 0, fmt.Errorf("apply pull: %w", err)
	}
	return len(employees), nil
}
