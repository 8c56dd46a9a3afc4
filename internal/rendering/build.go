package rendering

import (
	"context"
	"errors"
	"html/template"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/raster"
	"github.com/jonathan/ocr-review/internal/review"
	"github.com/jonathan/ocr-review/internal/store"
)

// DefaultImageConcurrency bounds concurrent page renders while building a viewer.
const DefaultImageConcurrency = 8

// Builder assembles viewers from stored stage records. A nil Source builds
// viewers without page images.
type Builder struct {
	Store       store.Store
	Source      raster.Source
	Concurrency int
	Logger      *slog.Logger
}

// BuildQAViewer loads the pages and reviews of pages into a QA viewer.
func (b *Builder) BuildQAViewer(ctx context.Context, title string, pages []int) (*QAViewer, error) {
	images, err := b.images(ctx, pages)
	if err != nil {
		return nil, err
	}

	v := &QAViewer{Title: title, Pages: make([]QAPage, len(pages))}
	reports := make([]*review.Report, len(pages))
	for i, page := range pages {
		p := QAPage{Page: page, Image: images[i]}

		var qa pipeline.QARecord
		switch err := b.Store.Load(ctx, store.StageQA, page, &qa); {
		case err == nil:
			p.BookPage = qa.BookPage
			p.Status = qa.Status
			if qa.ParsedQA != nil {
				if r, err := review.ParseReport(qa.ParsedQA); err == nil {
					p.Report = r
					p.HasCorrection = len(r.Directives()) > 0
					reports[i] = r
				}
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, &RenderError{Page: page, Message: "failed to load review", Cause: err}
		}

		var rec pipeline.PageRecord
		switch err := b.Store.Load(ctx, store.StagePages, page, &rec); {
		case err == nil:
			p.Tags = TagsOf(rec.ParsedJSON)
			if p.BookPage == 0 {
				p.BookPage = rec.BookPage
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, &RenderError{Page: page, Message: "failed to load OCR record", Cause: err}
		}

		v.Pages[i] = p
	}
	v.Stats = review.ComputeStats(reports)
	return v, nil
}

// BuildCorrectedViewer loads the corrected records of pages into a viewer.
// Pages never corrected are skipped.
func (b *Builder) BuildCorrectedViewer(ctx context.Context, title string, pages []int) (*CorrectedViewer, error) {
	report, err := pipeline.BuildCorrectionReport(ctx, b.Store, pages)
	if err != nil {
		return nil, &RenderError{Message: "failed to load corrections", Cause: err}
	}

	present := make([]int, len(report.Pages))
	for i, rec := range report.Pages {
		present[i] = rec.Page
	}
	images, err := b.images(ctx, present)
	if err != nil {
		return nil, err
	}

	v := &CorrectedViewer{
		Title:            title,
		TotalPages:       report.TotalPages,
		ModifiedPages:    report.ModifiedPages,
		TotalCorrections: report.TotalCorrections,
		Pages:            make([]CorrectedPage, len(report.Pages)),
	}
	for i, rec := range report.Pages {
		v.Pages[i] = CorrectedPage{
			Page:     rec.Page,
			BookPage: rec.BookPage,
			Image:    images[i],
			Method:   rec.Method,
			Modified: rec.Modified,
			Quality:  rec.Quality,
			Summary:  rec.Summary,
			Changes:  rec.Changes,
			Content:  ContentOf(rec.CorrectedJSON),
		}
	}
	return v, nil
}

// images renders pages concurrently. A page that fails to render is shown
// without its image.
func (b *Builder) images(ctx context.Context, pages []int) ([]template.URL, error) {
	out := make([]template.URL, len(pages))
	if b.Source == nil {
		return out, nil
	}

	limit := b.Concurrency
	if limit <= 0 {
		limit = DefaultImageConcurrency
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, page := range pages {
		g.Go(func() error {
			png, err := b.Source.Render(gctx, page)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("page image unavailable", "page", page, "error", err)
				return nil
			}
			out[i] = ImageURL(png)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &RenderError{Message: "image rendering canceled", Cause: err}
	}
	return out, nil
}
