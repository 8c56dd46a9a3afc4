// Package db provides PostgreSQL access for run records and page artifacts.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateRun creates a new run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, project, stage string, total int) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO ocr_runs (project, stage, status, total)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		project, stage, RunStatusRunning, total,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun records the final counts of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, counts RunCounts) error {
	failed := make([]int32, len(counts.FailedPages))
	for i, p := range counts.FailedPages {
		failed[i] = int32(p)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE ocr_runs
		 SET status = $1, total = $2, success = $3, partial_failure = $4, failed = $5,
		     failed_pages = $6, completed_at = NOW()
		 WHERE id = $7`,
		counts.Status(), counts.Total, counts.Success, counts.PartialFailure, counts.Failed, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, project, stage, status, total, success, partial_failure, failed,
		        failed_pages, created_at, completed_at
		 FROM ocr_runs WHERE id = $1`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs of a project
func (db *DB) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, project, stage, status, total, success, partial_failure, failed,
		        failed_pages, created_at, completed_at
		 FROM ocr_runs WHERE project = $1 ORDER BY created_at DESC LIMIT $2`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Project, &run.Stage, &run.Status, &run.Total, &run.Success,
		&run.PartialFailure, &run.Failed, &run.FailedPages, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveArtifact upserts the JSON record of one page for a stage. A nil runID
// stores no run reference.
func (db *DB) SaveArtifact(ctx context.Context, a *Artifact) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO page_artifacts (project, stage, page, run_id, status, content)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (project, stage, page) DO UPDATE
		 SET run_id = $4, status = $5, content = $6, updated_at = NOW()`,
		a.Project, a.Stage, a.Page, a.RunID, a.Status, a.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s/%d: %w", a.Stage, a.Page, err)
	}
	return nil
}

// GetArtifact retrieves the JSON record of one page, or nil when absent
func (db *DB) GetArtifact(ctx context.Context, project, stage string, page int) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM page_artifacts WHERE project = $1 AND stage = $2 AND page = $3`,
		project, stage, page,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s/%d: %w", stage, page, err)
	}
	return content, nil
}

// ArtifactExists reports whether a page record exists for a stage
func (db *DB) ArtifactExists(ctx context.Context, project, stage string, page int) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM page_artifacts WHERE project = $1 AND stage = $2 AND page = $3)`,
		project, stage, page,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact %s/%d: %w", stage, page, err)
	}
	return exists, nil
}

// ListArtifactPages returns the stored page numbers of a stage in ascending order
func (db *DB) ListArtifactPages(ctx context.Context, project, stage string) ([]int, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT page FROM page_artifacts WHERE project = $1 AND stage = $2 AND page > $3 ORDER BY page`,
		project, stage, SummaryPage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	pages := make([]int, 0)
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan artifact page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteRun deletes a run record; its artifacts keep their content
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM ocr_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}
