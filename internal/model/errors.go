package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors surfaced to the operator.
type ErrorCode string

const (
	// ErrCodeInvalidCode indicates a malformed activation code. Never reaches the network.
	ErrCodeInvalidCode ErrorCode = "INVALID_CODE"

	// ErrCodeActivationRejected indicates the remote refused the activation code.
	ErrCodeActivationRejected ErrorCode = "ACTIVATION_REJECTED"

	// ErrCodeNeedsActivation indicates no identity exists anywhere on the device.
	ErrCodeNeedsActivation ErrorCode = "NEEDS_ACTIVATION"

	// ErrCodeUnknownTerminal indicates a terminal id absent from the registry.
	ErrCodeUnknownTerminal ErrorCode = "UNKNOWN_TERMINAL"

	// ErrCodeInvalidPIN indicates a PIN that is not exactly four digits.
	ErrCodeInvalidPIN ErrorCode = "INVALID_PIN"

	// ErrCodeUnknownPIN indicates no cached employee has the entered PIN.
	ErrCodeUnknownPIN ErrorCode = "UNKNOWN_PIN"

	// ErrCodePhotoRequired indicates the site policy demands a photo and none was given.
	ErrCodePhotoRequired ErrorCode = "PHOTO_REQUIRED"

	// ErrCodeRecordFailed indicates the optimistic local write failed.
	ErrCodeRecordFailed ErrorCode = "RECORD_FAILED"
)

// Error is a categorized error for operator-facing failures.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err under code.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrInvalidCode        = &Error{Code: ErrCodeInvalidCode, Message: "invalid activation code"}
	ErrActivationRejected = &Error{Code: ErrCodeActivationRejected, Message: "activation rejected"}
	ErrNeedsActivation    = &Error{Code: ErrCodeNeedsActivation, Message: "device needs activation"}
	ErrUnknownTerminal    = &Error{Code: ErrCodeUnknownTerminal, Message: "unknown terminal"}
	ErrInvalidPIN         = &Error{Code: ErrCodeInvalidPIN, Message: "invalid PIN"}
	ErrUnknownPIN         = &Error{Code: ErrCodeUnknownPIN, Message: "unknown PIN"}
	ErrPhotoRequired      = &Error{Code: ErrCodePhotoRequired, Message: "photo required"}
	ErrRecordFailed       = &Error{Code: ErrCodeRecordFailed, Message: "clock action not recorded"}
)

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
