package model

import "github.com/google/uuid"

// NewLogID returns a time-sortable UUIDv7 for an attendance log entry.
// Panics if UUID generation fails (should never happen in practice).
func NewLogID() string {
	return uuid.Must(uuid.NewV7()).String()
}
