package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/ocr-review/internal/db"
)

// ArtifactDB is the subset of *db.DB the database store needs.
type ArtifactDB interface {
	SaveArtifact(ctx context.Context, a *db.Artifact) error
	GetArtifact(ctx context.Context, project, stage string, page int) ([]byte, error)
	ArtifactExists(ctx context.Context, project, stage string, page int) (bool, error)
	ListArtifactPages(ctx context.Context, project, stage string) ([]int, error)
}

var _ ArtifactDB = (*db.DB)(nil)

// DBStore keeps records in the page_artifacts table. The stage summary is
// stored as page zero.
type DBStore struct {
	db      ArtifactDB
	project string
	runID   *uuid.UUID
}

// NewDBStore creates a database store scoped to a project.
func NewDBStore(database ArtifactDB, project string) *DBStore {
	return &DBStore{db: database, project: project}
}

// WithRun returns a copy that tags every saved record with runID.
func (s *DBStore) WithRun(runID uuid.UUID) *DBStore {
	cp := *s
	cp.runID = &runID
	return &cp
}

func (s *DBStore) Save(ctx context.Context, stage string, page int, record any) error {
	if page <= db.SummaryPage {
		return fmt.Errorf("store error: invalid page %d", page)
	}
	return s.save(ctx, stage, page, record)
}

func (s *DBStore) Load(ctx context.Context, stage string, page int, into any) error {
	return s.load(ctx, stage, page, into)
}

func (s *DBStore) Exists(ctx context.Context, stage string, page int) (bool, error) {
	return s.db.ArtifactExists(ctx, s.project, stage, page)
}

func (s *DBStore) Pages(ctx context.Context, stage string) ([]int, error) {
	return s.db.ListArtifactPages(ctx, s.project, stage)
}

func (s *DBStore) SaveSummary(ctx context.Context, stage string, summary any) error {
	return s.save(ctx, stage, db.SummaryPage, summary)
}

func (s *DBStore) LoadSummary(ctx context.Context, stage string, into any) error {
	return s.load(ctx, stage, db.SummaryPage, into)
}

func (s *DBStore) save(ctx context.Context, stage string, page int, record any) error {
	content, err := Encode(record)
	if err != nil {
		return err
	}
	return s.db.SaveArtifact(ctx, &db.Artifact{
		Project: s.project,
		Stage:   stage,
		Page:    page,
		RunID:   s.runID,
		Status:  recordStatus(content),
		Content: content,
	})
}

func (s *DBStore) load(ctx context.Context, stage string, page int, into any) error {
	content, err := s.db.GetArtifact(ctx, s.project, stage, page)
	if err != nil {
		return err
	}
	if content == nil {
		return &NotFoundError{Stage: stage, Page: page}
	}
	if err := json.Unmarshal(content, into); err != nil {
		return fmt.Errorf("failed to decode %s/%d: %w", stage, page, err)
	}
	return nil
}

// recordStatus reads a top-level "status" string from an encoded record.
func recordStatus(content []byte) string {
	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(content, &head); err != nil {
		return ""
	}
	return head.Status
}
