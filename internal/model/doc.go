// Package model defines the entities a check-in terminal keeps on the device.
//
// The device owns four collections:
//   - Configuration: key/value facts about the active identity and policy
//   - Terminals: every paired identity held by this device
//   - Employees: the roster snapshot of the active organization
//   - Attendance log: append-only clock events awaiting or past delivery
//
// Identity-bearing configuration keys are listed in IdentityKeys. They are
// rewritten together whenever the active terminal changes.
package model
