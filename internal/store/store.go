// Package store persists per-page records and run summaries keyed by stage and page.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Stages with persisted page records.
const (
	StagePages     = "pages"
	StageQA        = "qa"
	StageCorrected = "corrected"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// NotFoundError reports a missing record.
type NotFoundError struct {
	Stage string
	Page  int
}

func (e *NotFoundError) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("store error: no %s summary", e.Stage)
	}
	return fmt.Sprintf("store error: no %s record for page %d", e.Stage, e.Page)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Store is the persistence boundary. Each page has exactly one writer per
// stage, so implementations need no cross-key locking.
type Store interface {
	Save(ctx context.Context, stage string, page int, record any) error
	Load(ctx context.Context, stage string, page int, into any) error
	Exists(ctx context.Context, stage string, page int) (bool, error)
	Pages(ctx context.Context, stage string) ([]int, error)
	SaveSummary(ctx context.Context, stage string, summary any) error
	LoadSummary(ctx context.Context, stage string, into any) error
}

// Encode renders a record the way every store persists it: two-space
// indentation, no HTML escaping, trailing newline.
func Encode(record any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}
