// Package schemas provides JSON Schema validation for recovered documents and stored records.
package schemas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/ocr-review/internal/document"
)

// ResolveSchemaPath attempts to find a schema file by trying multiple common path resolutions.
// It tries paths relative to the current working directory, then paths relative to likely repo root locations.
// Returns the first path that exists, or empty string if none found.
// This is useful when CLI commands may run from different working directory contexts (e.g., tests).
func ResolveSchemaPath(relativePath string) string {
	// Try paths in order:
	// 1. Relative to current working directory
	// 2. One level up (../schemas/...)
	// 3. Two levels up (../../schemas/...)
	candidates := []string{
		relativePath,
		filepath.Join("..", relativePath),
		filepath.Join("..", "..", relativePath),
	}

	for _, candidate := range candidates {
		if absPath, err := filepath.Abs(candidate); err == nil {
			if _, err := os.Stat(absPath); err == nil {
				return absPath
			}
		}
	}

	return ""
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validator holds a compiled schema for repeated validation.
type Validator struct {
	path   string
	schema *gojsonschema.Schema
}

// NewValidator compiles the schema at path. The path is resolved with
// ResolveSchemaPath when it does not exist as given.
func NewValidator(path string) (*Validator, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if resolved := ResolveSchemaPath(path); resolved != "" {
			absPath = resolved
		} else {
			return nil, fmt.Errorf("schema file not found: %s", absPath)
		}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + absPath))
	if err != nil {
		return nil, &SchemaLoadError{
			Path:    absPath,
			Message: "failed to compile schema",
			Cause:   err,
		}
	}
	return &Validator{path: absPath, schema: schema}, nil
}

// Path returns the resolved schema path.
func (v *Validator) Path() string {
	return v.path
}

// Validate checks a document against the compiled schema.
func (v *Validator) Validate(doc *document.Value) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}
	return resultError(result)
}

// Messages flattens a validation error into "field: message" strings.
// Other errors yield their message alone.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		out = append(out, fe.Field+": "+fe.Message)
	}
	return out
}

func resultError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}
