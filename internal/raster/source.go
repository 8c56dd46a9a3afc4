package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MIMEType is the encoding of every image a Source returns.
const MIMEType = "image/png"

// Source produces the image for a page. Pages are numbered from 1.
// Rendering the same page twice yields the same bytes.
type Source interface {
	Render(ctx context.Context, page int) ([]byte, error)
	PageCount() int
	Close() error
}

// PagePath returns the image path for a page inside dir.
func PagePath(dir string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("page_%03d.png", page))
}

// DirSource serves pre-rendered page_NNN.png files from a directory.
type DirSource struct {
	dir      string
	pages    int
	maxWidth int
}

// NewDirSource counts consecutive page files starting at page 1. Images wider
// than maxWidth are downscaled on read; zero disables scaling.
func NewDirSource(dir string, maxWidth int) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open image directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	pages := 0
	for {
		if _, err := os.Stat(PagePath(dir, pages+1)); err != nil {
			break
		}
		pages++
	}
	return &DirSource{dir: dir, pages: pages, maxWidth: maxWidth}, nil
}

// Render reads the stored page image.
func (s *DirSource) Render(ctx context.Context, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(PagePath(s.dir, page))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Page: page, Message: "page image not found", Cause: err}
		}
		return nil, &Error{Page: page, Message: "failed to read page image", Cause: err}
	}
	scaled, err := DownscalePNG(data, s.maxWidth)
	if err != nil {
		return nil, &Error{Page: page, Message: "failed to scale page image", Cause: err}
	}
	return scaled, nil
}

// PageCount returns the number of consecutive pages found at construction.
func (s *DirSource) PageCount() int {
	return s.pages
}

// Close is a no-op.
func (s *DirSource) Close() error {
	return nil
}
