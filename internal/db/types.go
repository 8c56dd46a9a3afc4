package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// SummaryPage is the artifact page number reserved for a stage's run summary.
const SummaryPage = 0

// Run represents one stage execution over a page set
type Run struct {
	ID             uuid.UUID  `json:"id"`
	Project        string     `json:"project"`
	Stage          string     `json:"stage"`
	Status         string     `json:"status"`
	Total          int        `json:"total"`
	Success        int        `json:"success"`
	PartialFailure int        `json:"partial_failure"`
	Failed         int        `json:"failed"`
	FailedPages    []int32    `json:"failed_pages"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunCounts are the final per-status counts recorded when a run completes
type RunCounts struct {
	Total          int
	Success        int
	PartialFailure int
	Failed         int
	FailedPages    []int
}

// Status derives the run status from its counts.
func (c RunCounts) Status() string {
	switch {
	case c.Total > 0 && c.Success == 0:
		return RunStatusFailed
	case c.PartialFailure+c.Failed > 0:
		return RunStatusPartial
	default:
		return RunStatusCompleted
	}
}

// Artifact represents one stored page record
type Artifact struct {
	Project   string     `json:"project"`
	Stage     string     `json:"stage"`
	Page      int        `json:"page"`
	RunID     *uuid.UUID `json:"run_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Content   []byte     `json:"-"`
	UpdatedAt time.Time  `json:"updated_at"`
}
