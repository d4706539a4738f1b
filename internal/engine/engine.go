package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sitepulse/kioskd/internal/remote"
	"github.com/sitepulse/kioskd/internal/store"
)

const (
	// DefaultBatchSize bounds entries per push call. Photos make entries
	// large; small batches complete reliably on weak links.
	DefaultBatchSize = 5

	// MaxBatchSize is the largest accepted batch size.
	MaxBatchSize = 50

	// DefaultInterval is the period of the connectivity-gated interval trigger.
	DefaultInterval = 60 * time.Second
)

// State is the engine state.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerBoot     Trigger = "boot"
	TriggerInterval Trigger = "interval"
	TriggerOnline   Trigger = "online"
	TriggerManual   Trigger = "manual"
	TriggerNudge    Trigger = "nudge"
	TriggerSwitch   Trigger = "switch"
	TriggerClock    Trigger = "clock"
)

// Interactive reports whether a cycle started by t should signal success.
func (t Trigger) Interactive() bool {
	return t == TriggerManual
}

// Connectivity reports whether the device believes it is online.
type Connectivity interface {
	Online() bool
}

// Notifier receives the result of an interactive cycle that made progress.
type Notifier func(Result)

// Engine is the Synchronization Engine.
//
// Thread-safety model:
//   - Cycle, SyncNow, Kick, ClockAction, Status: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	store  *store.Store
	remote remote.Client

	busy atomic.Bool
	wg   sync.WaitGroup

	batchSize int
	interval  time.Duration
	conn      Connectivity
	notify    Notifier
	now       func() time.Time
	kicks     chan Trigger

	mu   sync.Mutex
	last Result
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBatchSize sets the push batch size. Values outside 1..MaxBatchSize
// are ignored.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 && n <= MaxBatchSize {
			e.batchSize = n
		}
	}
}

// WithInterval sets the interval trigger period.
func WithInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithConnectivity gates the interval trigger on c.Online().
func WithConnectivity(c Connectivity) EngineOption {
	return func(e *Engine) {
		e.conn = c
	}
}

// WithNotifier sets the success signal for interactive cycles.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notify = n
	}
}

// WithNow overrides the wall clock used for entry timestamps and status.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an idle Engine.
func New(s *store.Store, rc remote.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		remote:    rc,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		now:       time.Now,
		kicks:     make(chan Trigger, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchSize returns the configured push batch size.
func (e *Engine) BatchSize() int {
	return e.batchSize
}

// State returns IDLE or RUNNING.
func (e *Engine) State() State {
	if e.busy.Load() {
		return StateRunning
	}
	return StateIdle
}

// SyncNow runs a manual, interactive cycle and waits for it.
func (e *Engine) SyncNow(ctx context.Context) Result {
	return e.Cycle(ctx, TriggerManual, false)
}

// Kick asks the Run loop for a cycle without waiting. If the loop is not
// running or is saturated the request is dropped.
func (e *Engine) Kick(trigger Trigger) {
	select {
	case e.kicks <- trigger:
	default:
		slog.Debug("sync trigger dropped", "trigger", trigger)
	}
}

// Run drives the engine until ctx is cancelled: one cycle at boot, then
// interval cycles while online, plus any kicked triggers. Identity must
// already be resolved.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine starting", "interval", e.interval, "batch_size", e.batchSize)

	e.spawn(ctx, TriggerBoot)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync engine stopping: context cancelled")
			e.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			if e.conn != nil && !e.conn.Online() {
				slog.Debug("interval sync skipped: offline")
				continue
			}
			e.spawn(ctx, TriggerInterval)

		case t := <-e.kicks:
			e.spawn(ctx, t)
		}
	}
}

// Wait blocks until background cycles and immediate pushes have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) spawn(ctx context.Context, t Trigger) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Cycle(ctx, t, !t.Interactive())
	}()
}
