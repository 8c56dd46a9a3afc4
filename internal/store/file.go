package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var pageFilePattern = regexp.MustCompile(`^page_(\d+)\.json$`)

// FileStore keeps records under <root>/<stage>/page_NNN.json and summaries
// under <root>/<stage>_summary.json.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the base directory.
func (s *FileStore) Root() string {
	return s.root
}

// PagePath returns the record path for a page.
func (s *FileStore) PagePath(stage string, page int) string {
	return filepath.Join(s.root, stage, fmt.Sprintf("page_%03d.json", page))
}

// SummaryPath returns the summary path for a stage.
func (s *FileStore) SummaryPath(stage string) string {
	return filepath.Join(s.root, stage+"_summary.json")
}

// Save writes a record atomically.
func (s *FileStore) Save(ctx context.Context, stage string, page int, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(s.PagePath(stage, page), record)
}

// Load decodes a record into into.
func (s *FileStore) Load(ctx context.Context, stage string, page int, into any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return readJSON(s.PagePath(stage, page), into, &NotFoundError{Stage: stage, Page: page})
}

// Exists reports whether a record file exists.
func (s *FileStore) Exists(ctx context.Context, stage string, page int) (bool, error) {
	_, err := os.Stat(s.PagePath(stage, page))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Pages lists the pages with a record for stage in ascending order.
func (s *FileStore) Pages(ctx context.Context, stage string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, stage))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to list %s records: %w", stage, err)
	}

	pages := make([]int, 0, len(entries))
	for _, e := range entries {
		m := pageFilePattern.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			pages = append(pages, n)
		}
	}
	sort.Ints(pages)
	return pages, nil
}

// SaveSummary writes the stage summary atomically.
func (s *FileStore) SaveSummary(ctx context.Context, stage string, summary any) error {
	return writeJSON(s.SummaryPath(stage), summary)
}

// LoadSummary decodes the stage summary into into.
func (s *FileStore) LoadSummary(ctx context.Context, stage string, into any) error {
	return readJSON(s.SummaryPath(stage), into, &NotFoundError{Stage: stage})
}

func writeJSON(path string, record any) error {
	data, err := Encode(record)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, into any, notFound error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
