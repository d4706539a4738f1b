// Package connectivity tracks whether the remote is reachable.
//
// The monitor probes on an interval and reports the offline→online edge,
// which the engine turns into an immediate sync.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the probe period.
const DefaultInterval = 10 * time.Second

// Prober checks reachability of the remote.
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// Monitor is an online/offline tracker. The zero state is offline.
type Monitor struct {
	prober   Prober
	path     string
	interval time.Duration

	online atomic.Bool

	mu       sync.Mutex
	probed   bool
	onOnline []func()
}

// NewMonitor creates a Monitor probing path every interval.
func NewMonitor(p Prober, path string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{prober: p, path: path, interval: interval}
}

// OnOnline registers fn to run on every offline→online transition. The
// first probe only establishes the baseline and never fires callbacks.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check probes once and updates the state. It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.prober.Probe(ctx, m.path)
	now := err == nil
	was := m.online.Swap(now)

	m.mu.Lock()
	first := !m.probed
	m.probed = true
	callbacks := append([]func(){}, m.onOnline...)
	m.mu.Unlock()

	switch {
	case first:
		slog.Debug("connectivity baseline", "online", now)
	case now && !was:
		slog.Info("connectivity restored")
		for _, fn := range callbacks {
			fn()
		}
	case !now && was:
		slog.Warn("connectivity lost", "error", err)
	}
	return now
}

// Run probes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
