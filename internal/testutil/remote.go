package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/remote"
)

// ErrOffline is returned by FakeRemote while Offline is set.
var ErrOffline = errors.New("fake remote: network unreachable")

// FakeRemote is an in-memory remote.Client.
//
// It records every accepted push batch so tests can check ordering and the
// absence of duplicate submissions.
type FakeRemote struct {
	mu sync.Mutex

	activations map[string]remote.Activation
	configs     map[string]model.KioskConfig
	rosters     map[string][]model.Employee

	offline       bool
	failPushCalls map[int]bool
	failConfig    bool
	failRoster    bool
	pushGate      chan struct{}
	configGate    chan struct{}

	pushCalls     int
	activateCalls int
	configCalls   int
	rosterCalls   int
	accepted      [][]model.AttendanceLog
}

var _ remote.Client = (*FakeRemote)(nil)

// NewFakeRemote creates an online fake with no data.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		activations:   make(map[string]remote.Activation),
		configs:       make(map[string]model.KioskConfig),
		rosters:       make(map[string][]model.Employee),
		failPushCalls: make(map[int]bool),
	}
}

// AddActivation registers a valid activation code.
func (f *FakeRemote) AddActivation(code string, a remote.Activation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations[code] = a
}

// SetConfig sets the kiosk config returned for terminalID.
func (f *FakeRemote) SetConfig(terminalID string, kc model.KioskConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[terminalID] = kc
}

// SetRoster sets the roster returned for orgID.
func (f *FakeRemote) SetRoster(orgID string, employees []model.Employee) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosters[orgID] = append([]model.Employee(nil), employees...)
}

// SetOffline makes every call fail with ErrOffline.
func (f *FakeRemote) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailPushCall makes the n-th push call (1-based, counted over the fake's
// lifetime) fail.
func (f *FakeRemote) FailPushCall(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPushCalls[n] = true
}

// FailConfig makes config fetches fail.
func (f *FakeRemote) FailConfig(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failConfig = fail
}

// FailRoster makes roster fetches fail.
func (f *FakeRemote) FailRoster(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRoster = fail
}

// HoldPushes makes every push block until the returned release func is
// called. Used to keep a cycle in flight.
func (f *FakeRemote) HoldPushes() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.pushGate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.pushGate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// HoldConfig makes every config fetch block until the returned release func
// is called. The fetch is counted before it blocks.
func (f *FakeRemote) HoldConfig() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.configGate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.configGate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *FakeRemote) VerifyActivationCode(ctx context.Context, code string) (remote.Activation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activateCalls++
	if f.offline {
		return remote.Activation{}, ErrOffline
	}
	a, ok := f.activations[code]
	if !ok {
		return remote.Activation{}, &remote.Error{Op: "verify activation code", StatusCode: 404, Message: "invalid or expired code"}
	}
	return a, nil
}

func (f *FakeRemote) PushLogs(ctx context.Context, logs []model.AttendanceLog) error {
	f.mu.Lock()
	f.pushCalls++
	call := f.pushCalls
	gate := f.pushGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return ErrOffline
	}
	if f.failPushCalls[call] {
		return &remote.Error{Op: "push logs", StatusCode: 503, Message: "unavailable"}
	}
	batch := make([]model.AttendanceLog, len(logs))
	copy(batch, logs)
	f.accepted = append(f.accepted, batch)
	return nil
}

func (f *FakeRemote) FetchKioskConfig(ctx context.Context, terminalID string) (model.KioskConfig, error) {
	f.mu.Lock()
	f.configCalls++
	gate := f.configGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.KioskConfig{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return model.KioskConfig{}, ErrOffline
	}
	if f.failConfig {
		return model.KioskConfig{}, &remote.Error{Op: "fetch kiosk config", StatusCode: 500, Message: "boom"}
	}
	kc, ok := f.configs[terminalID]
	if !ok {
		return model.KioskConfig{}, &remote.Error{Op: "fetch kiosk config", StatusCode: 404, Message: "unknown kiosk"}
	}
	return kc, nil
}

func (f *FakeRemote) FetchEmployees(ctx context.Context, orgID string) ([]model.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls++
	if f.offline {
		return nil, ErrOffline
	}
	if f.failRoster {
		return nil, &remote.Error{Op: "fetch organization employees", StatusCode: 500, Message: "boom"}
	}
	return append([]model.Employee(nil), f.rosters[orgID]...), nil
}

// AcceptedBatches returns a copy of every accepted push batch in order.
func (f *FakeRemote) AcceptedBatches() [][]model.AttendanceLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.AttendanceLog, len(f.accepted))
	copy(out, f.accepted)
	return out
}

// AcceptedIDs flattens accepted batches into log ids in submission order.
func (f *FakeRemote) AcceptedIDs() []string {
	var ids []string
	for _, batch := range f.AcceptedBatches() {
		for _, l := range batch {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// PushCalls returns the number of push attempts, accepted or not. A push
// held by HoldPushes is already counted.
func (f *FakeRemote) PushCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushCalls
}

// ActivateCalls returns the number of activation attempts.
func (f *FakeRemote) ActivateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activateCalls
}

// ConfigCalls returns the number of config fetches.
func (f *FakeRemote) ConfigCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configCalls
}

// RosterCalls returns the number of roster fetches.
func (f *FakeRemote) RosterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rosterCalls
}
