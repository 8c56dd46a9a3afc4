package pipeline

import "fmt"

// StageError reports why a stage could not complete a page.
type StageError struct {
	Stage   string
	Page    int
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s page %d: %s: %v", e.Stage, e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s page %d: %s", e.Stage, e.Page, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
