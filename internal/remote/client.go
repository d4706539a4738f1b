// Package remote talks to the system of record.
//
// The core depends on four operations only; Client captures them so the
// engine and pairing manager can run against a fake in tests.
package remote

import (
	"context"

	"github.com/sitepulse/kioskd/internal/model"
)

// Client is the remote collaborator.
type Client interface {
	// VerifyActivationCode exchanges a 6-character code for a device identity.
	VerifyActivationCode(ctx context.Context, code string) (Activation, error)

	// PushLogs submits an ordered batch. The batch is accepted or rejected as a whole.
	PushLogs(ctx context.Context, logs []model.AttendanceLog) error

	// FetchKioskConfig returns the current policy/identity for a terminal.
	FetchKioskConfig(ctx context.Context, terminalID string) (model.KioskConfig, error)

	// FetchEmployees returns the full roster snapshot for an organization.
	FetchEmployees(ctx context.Context, orgID string) ([]model.Employee, error)
}

// Activation is the identity granted for a valid activation code.
type Activation struct {
	DeviceID      string `json:"device_id" validate:"required"`
	TerminalID    string `json:"kiosk_id"`
	TerminalName  string `json:"kiosk_name"`
	SiteID        string `json:"site_id" validate:"required"`
	SiteName      string `json:"site_name"`
	OrgID         string `json:"organization_id" validate:"required"`
	OrgName       string `json:"organization_name"`
	OrgLogoURL    string `json:"organization_logo,omitempty"`
	PhotoRequired bool   `json:"photo_required"`
}

// Terminal converts the activation into a terminal record. The terminal id
// falls back to the device id when the remote does not send one.
func (a Activation) Terminal() model.Terminal {
	id := a.TerminalID
	if id == "" {
		id = a.DeviceID
	}
	return model.Terminal{
		ID:       id,
		Name:     a.TerminalName,
		SiteID:   a.SiteID,
		SiteName: a.SiteName,
		OrgID:    a.OrgID,
		OrgName:  a.OrgName,
		LogoURL:  a.OrgLogoURL,
	}
}
