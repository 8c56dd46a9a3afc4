// Package recovery turns unreliable model output into a parsed document.
package recovery

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned for empty or whitespace-only text.
var ErrEmptyInput = errors.New("response text is empty")

// ErrUnrecoverable is returned when every strategy failed.
var ErrUnrecoverable = errors.New("no recovery strategy produced a document")

// Error reports a recovery failure. Raw keeps the original text so callers
// can persist it for audit and later reprocessing.
type Error struct {
	Message string
	Raw     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recovery error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("recovery error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
