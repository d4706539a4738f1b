package engine

import (
	"context"
	"time"
)

// Status is a snapshot of the engine for operators.
type Status struct {
	State       State     `json:"state"`
	LastTrigger Trigger   `json:"last_trigger,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
	LastPushed  int       `json:"last_pushed"`
	LastPulled  bool      `json:"last_pulled"`
	LastError   string    `json:"last_error,omitempty"`
	Pending     int       `json:"pending"`
}

// Status returns the current state, the last completed cycle and the number
// of entries still awaiting delivery.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()

	st := Status{
		State:       e.State(),
		LastTrigger: last.Trigger,
		LastCycleAt: last.At,
		LastPushed:  last.Pushed,
		LastPulled:  last.Pulled,
	}
	if err := last.Err(); err != nil {
		st.LastError = err.Error()
	}

	pending, err := e.store.CountPending(ctx)
	if err != nil {
		return Status{}, err
	}
	st.Pending = pending
	return st, nil
}
