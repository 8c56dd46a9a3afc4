package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/ocr-review/internal/pipeline/steps"
	"github.com/jonathan/ocr-review/internal/store"
)

// ErrRunNotFound indicates run was not found
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		runErr *ErrRunNotFound
		valErr *ErrValidation
		depErr *steps.DependencyError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &runErr), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &depErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
