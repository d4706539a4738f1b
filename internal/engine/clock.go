package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sitepulse/kioskd/internal/model"
	"github.com/sitepulse/kioskd/internal/presence"
)

var validate = validator.New()

// ClockRequest is one employee interaction at the terminal.
type ClockRequest struct {
	PIN   string
	Photo []byte

	// Direction overrides the presence-derived direction when set.
	Direction model.Direction
}

// ClockResult is what the UI shows after a clock action.
type ClockResult struct {
	Entry    model.AttendanceLog
	Employee model.Employee
}

// ClockAction validates the request, resolves the employee from the cached
// roster, writes the entry durably and starts a background delivery
// attempt. It returns as soon as the local write commits.
func (e *Engine) ClockAction(ctx context.Context, req ClockRequest) (ClockResult, error) {
	if err := validate.Var(req.PIN, "required,len=4,number"); err != nil {
		return ClockResult{}, model.NewError(model.ErrCodeInvalidPIN, "PIN must be exactly 4 digits")
	}

	terminalID, err := e.store.GetString(ctx, model.KeyDeviceID)
	if err != nil {
		return ClockResult{}, fmt.Errorf("clock action: %w", err)
	}
	if terminalID == "" {
		return ClockResult{}, model.ErrNeedsActivation
	}

	orgID, err := e.store.GetString(ctx, model.KeyOrgID)
	if err != nil {
		return ClockResult{}, fmt.Errorf("clock action: %w", err)
	}
	siteID, err := e.store.GetString(ctx, model.KeySiteID)
	if err != nil {
		return ClockResult{}, fmt.Errorf("clock action: %w", err)
	}

	// Only the roster of the active organization can match.
	emp, ok, err := e.store.FindEmployeeByPIN(ctx, orgID, req.PIN)
	if err != nil {
		return ClockResult{}, fmt.Errorf("clock action: %w", err)
	}
	if !ok {
		return ClockResult{}, model.ErrUnknownPIN
	}

	photoRequired, err := e.store.GetBool(ctx, model.KeyPhotoRequired)
	if err != nil {
		return ClockResult{}, fmt.Errorf("clock action: %w", err)
	}
	if photoRequired && len(req.Photo) == 0 {
		return ClockResult{}, model.ErrPhotoRequired
	}

	dir := req.Direction
	if dir == "" {
		history, err := e.store.LogsForEmployee(ctx, emp.ID)
		if err != nil {
			return ClockResult{}, fmt.Errorf("clock action: %w", err)
		}
		dir = presence.NextDirection(history)
	}

	entry, err := e.RecordLocally(ctx, model.AttendanceLog{
		ID:         model.NewLogID(),
		EmployeeID: emp.ID,
		OrgID:      orgID,
		SiteID:     siteID,
		KioskID:    terminalID,
		Direction:  dir,
		Timestamp:  e.now(),
		Photo:      req.Photo,
	})
	if err != nil {
		return ClockResult{}, err
	}

	slog.Info("clock action recorded",
		"log_id", entry.ID,
		"employee_id", emp.ID,
		"direction", entry.Direction,
		"photo", len(entry.Photo) > 0,
	)

	e.AttemptImmediatePush(ctx)
	return ClockResult{Entry: entry, Employee: emp}, nil
}

// RecordLocally durably appends entry as PENDING. When it returns nil the
// entry survives a crash and will be delivered by a later cycle.
func (e *Engine) RecordLocally(ctx context.Context, entry model.AttendanceLog) (model.AttendanceLog, error) {
	saved, err := e.store.AppendLog(ctx, entry)
	if err != nil {
		return model.AttendanceLog{}, model.WrapError(model.ErrCodeRecordFailed, "clock action not recorded", err)
	}
	return saved, nil
}

// AttemptImmediatePush starts a best-effort background push and returns
// without waiting. It runs the regular push phase under the busy flag, so
// older PENDING entries go first and nothing is sent twice. If a cycle is
// already running the attempt is dropped; that cycle or the next one
// delivers the entry.
func (e *Engine) AttemptImmediatePush(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if !e.busy.CompareAndSwap(false, true) {
			slog.Debug("immediate push dropped: cycle in progress")
			return
		}
		defer e.busy.Store(false)

		pushed, _, err := e.pushPending(ctx)
		if err != nil {
			slog.Debug("immediate push failed; entry stays pending", "error", err)
			return
		}
		slog.Debug("immediate push finished", "pushed", pushed)
	}()
}
