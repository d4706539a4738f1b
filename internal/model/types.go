package model

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the sense of a clock event.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ParseDirection accepts "in"/"out" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	}
	return "", fmt.Errorf("invalid direction %q: must be IN or OUT", s)
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// LogStatus is the delivery state of an attendance log entry.
// SYNCED is terminal: an entry never returns to PENDING.
type LogStatus string

const (
	StatusPending LogStatus = "PENDING"
	StatusSynced  LogStatus = "SYNCED"
)

// Terminal is one paired identity held by the device.
type Terminal struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	SiteID    string    `json:"site_id" yaml:"site_id"`
	SiteName  string    `json:"site_name" yaml:"site_name"`
	OrgID     string    `json:"org_id" yaml:"org_id"`
	OrgName   string    `json:"org_name" yaml:"org_name"`
	LogoURL   string    `json:"logo_url,omitempty" yaml:"logo_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Employee is a cached roster entry scoped to the active organization.
type Employee struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PIN       string `json:"pin_code"`
	JobTitle  string `json:"job_title,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// FullName joins first and last names.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// AttendanceLog is one clock event.
//
// Seq is assigned by the store on insert and defines creation order.
// Timestamp is the event time as observed on the device, not the send time.
type AttendanceLog struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"-"`
	EmployeeID string    `json:"employee_id"`
	OrgID      string    `json:"organization_id"`
	SiteID     string    `json:"site_id"`
	KioskID    string    `json:"kiosk_id"`
	Direction  Direction `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Photo      []byte    `json:"photo,omitempty"`
	Status     LogStatus `json:"-"`
}

// KioskConfig is the policy/identity snapshot returned by a config pull.
type KioskConfig struct {
	OrgID         string `json:"organization_id" validate:"required"`
	OrgName       string `json:"organization_name"`
	OrgLogoURL    string `json:"organization_logo,omitempty"`
	SiteID        string `json:"site_id" validate:"required"`
	SiteName      string `json:"site_name"`
	KioskName     string `json:"kiosk_name"`
	PhotoRequired bool   `json:"photo_required"`
}
