// Package raster renders page images for the model and the viewers.
package raster

import "fmt"

// Error represents a failure to produce a page image
type Error struct {
	Page    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("raster error: page %d: %s: %v", e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("raster error: page %d: %s", e.Page, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
