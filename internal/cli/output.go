package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sitepulse/kioskd/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess         = 0 // Successful execution
	ExitFailure         = 1 // Operation failed (rejected code, unknown PIN, remote unreachable, ...)
	ExitCommandError    = 2 // Command error (bad flags, unreadable config, database not found)
	ExitNeedsActivation = 3 // No identity anywhere on the device; run activate
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitFor maps a domain error onto an ExitError. ExitErrors pass through.
func exitFor(message string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if model.IsCode(err, model.ErrCodeNeedsActivation) {
		return WrapExitError(ExitNeedsActivation, "device is not activated (run: kioskd activate <code>)", err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // model error code, e.g. "UNKNOWN_PIN"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs data. In text mode, text renders it; a nil text prints
// data with fmt.Println.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through Error and returns the matching ExitError. Used
// for operator-facing failures (bad PIN, rejected code) so JSON consumers
// get a structured error body.
func (f *OutputFormatter) Fail(message string, err error) error {
	code := string(model.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}
	var details any
	if f.Verbose {
		details = err.Error()
	}
	_ = f.Error(code, message, details)
	return exitFor(message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
