package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed remote call. Every remote failure is transient from the
// engine's point of view except a rejected activation code.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed with status code %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRejected reports whether the remote answered with a client error
// (4xx other than 408/429), i.e. a definitive refusal rather than a
// network or server fault.
func IsRejected(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	switch re.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return re.StatusCode >= 400 && re.StatusCode < 500
}
