package llm

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is returned when every attempt of a call failed with a
// retryable error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Error represents a failed model call
type Error struct {
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("llm error: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
