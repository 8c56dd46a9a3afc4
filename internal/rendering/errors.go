// Package rendering builds self-contained HTML viewers for reviewed and corrected pages.
package rendering

import "fmt"

// TemplateError reports a viewer template that failed to execute.
type TemplateError struct {
	Template string
	Cause    error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("viewer template %s failed: %v", e.Template, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError reports a viewer that could not be assembled from stored records.
// Page is zero when the failure is not tied to a single page.
type RenderError struct {
	Page    int
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	msg := "viewer: " + e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("viewer page %d: %s", e.Page, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
