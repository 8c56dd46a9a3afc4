package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI matches the resolution the OCR prompts were tuned on.
const DefaultDPI = 250

// PDFOptions configures a PDFSource.
type PDFOptions struct {
	DPI float64
	// MaxWidth downscales wider renders; zero keeps the native size.
	MaxWidth int
	// CacheDir keeps rendered pages as page_NNN.png; empty disables caching.
	CacheDir string
}

// PDFSource renders pages of a PDF with MuPDF. The underlying document is
// not safe for concurrent use, so renders are serialized.
type PDFSource struct {
	mu    sync.Mutex
	doc   *fitz.Document
	pages int
	opts  PDFOptions
}

// NewPDFSource opens the PDF at path.
func NewPDFSource(path string, opts PDFOptions) (*PDFSource, error) {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.CacheDir != "" {
		if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create image cache directory: %w", err)
		}
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := doc.NumPage()
	if pages == 0 {
		doc.Close()
		return nil, fmt.Errorf("PDF has no pages")
	}

	return &PDFSource{doc: doc, pages: pages, opts: opts}, nil
}

// Render returns the PNG for a page, from the cache directory when present.
func (s *PDFSource) Render(ctx context.Context, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > s.pages {
		return nil, &Error{Page: page, Message: fmt.Sprintf("page out of range 1..%d", s.pages)}
	}

	var cached string
	if s.opts.CacheDir != "" {
		cached = PagePath(s.opts.CacheDir, page)
		if data, err := os.ReadFile(cached); err == nil {
			return data, nil
		}
	}

	data, err := s.render(page)
	if err != nil {
		return nil, err
	}

	if cached != "" {
		if err := writeFileAtomic(cached, data); err != nil {
			return nil, &Error{Page: page, Message: "failed to cache page image", Cause: err}
		}
	}
	return data, nil
}

func (s *PDFSource) render(page int) ([]byte, error) {
	s.mu.Lock()
	img, err := s.doc.ImageDPI(page-1, s.opts.DPI)
	s.mu.Unlock()
	if err != nil {
		return nil, &Error{Page: page, Message: "failed to render page", Cause: err}
	}

	scaled := Downscale(img, s.opts.MaxWidth)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, &Error{Page: page, Message: "failed to encode page", Cause: err}
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages in the PDF.
func (s *PDFSource) PageCount() int {
	return s.pages
}

// Close releases the PDF document.
func (s *PDFSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}

// writeFileAtomic keeps concurrent readers from seeing a partial image.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
