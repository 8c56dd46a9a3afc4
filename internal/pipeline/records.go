package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/document"
	"github.com/jonathan/ocr-review/internal/llm"
	"github.com/jonathan/ocr-review/internal/review"
	"github.com/jonathan/ocr-review/internal/store"
)

// PageRecord is the persisted OCR result of one page. The raw response is kept
// so a page can be re-recovered without another model call.
type PageRecord struct {
	Page             int             `json:"page"`
	BookPage         int             `json:"book_page"`
	Status           string          `json:"status"`
	Model            string          `json:"model,omitempty"`
	RawResponse      string          `json:"raw_response,omitempty"`
	Thinking         string          `json:"thinking,omitempty"`
	Usage            *llm.Usage      `json:"usage,omitempty"`
	ParsedJSON       *document.Value `json:"parsed_json"`
	RecoveryStrategy string          `json:"recovery_strategy,omitempty"`
	SchemaErrors     []string        `json:"schema_errors,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// QARecord is the persisted review of one page.
type QARecord struct {
	Page             int             `json:"page"`
	BookPage         int             `json:"book_page"`
	Status           string          `json:"status"`
	Model            string          `json:"model,omitempty"`
	RawResponse      string          `json:"raw_response,omitempty"`
	Thinking         string          `json:"thinking,omitempty"`
	Usage            *llm.Usage      `json:"usage,omitempty"`
	ParsedQA         *document.Value `json:"parsed_qa"`
	RecoveryStrategy string          `json:"recovery_strategy,omitempty"`
	SchemaErrors     []string        `json:"schema_errors,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// CorrectedRecord is the persisted outcome of applying a review to a page.
type CorrectedRecord struct {
	Page          int                 `json:"page"`
	BookPage      int                 `json:"book_page"`
	Status        string              `json:"status"`
	Method        correction.Method   `json:"method"`
	Modified      bool                `json:"modified"`
	Changes       []correction.Change `json:"changes"`
	Quality       string              `json:"quality,omitempty"`
	Summary       string              `json:"summary,omitempty"`
	IssuesCount   int                 `json:"issues_count"`
	CorrectedJSON *document.Value     `json:"corrected_json"`
}

// CorrectionReport totals the apply stage over a page set.
type CorrectionReport struct {
	TotalPages       int                `json:"total_pages"`
	ModifiedPages    int                `json:"modified_pages"`
	TotalCorrections int                `json:"total_corrections"`
	Methods          map[string]int     `json:"methods"`
	Pages            []*CorrectedRecord `json:"pages"`
}

// StageCorrections is the summary key of the correction report.
const StageCorrections = "corrections"

// LoadReports reads the review of every page. Pages without a stored review
// or with an unreadable one yield a nil entry.
func LoadReports(ctx context.Context, st store.Store, pages []int) ([]*review.Report, error) {
	reports := make([]*review.Report, len(pages))
	for i, page := range pages {
		var qa QARecord
		if err := st.Load(ctx, store.StageQA, page, &qa); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load review of page %d: %w", page, err)
		}
		if qa.ParsedQA == nil {
			continue
		}
		r, err := review.ParseReport(qa.ParsedQA)
		if err != nil {
			continue
		}
		if r.Page == 0 {
			r.Page = qa.Page
		}
		if r.BookPage == 0 {
			r.BookPage = qa.BookPage
		}
		reports[i] = r
	}
	return reports, nil
}

// BuildCorrectionReport totals the stored corrected records of pages.
func BuildCorrectionReport(ctx context.Context, st store.Store, pages []int) (*CorrectionReport, error) {
	report := &CorrectionReport{
		TotalPages: len(pages),
		Methods:    map[string]int{},
		Pages:      make([]*CorrectedRecord, 0, len(pages)),
	}
	for _, page := range pages {
		var rec CorrectedRecord
		if err := st.Load(ctx, store.StageCorrected, page, &rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load corrected page %d: %w", page, err)
		}
		report.Methods[string(rec.Method)]++
		if rec.Modified {
			report.ModifiedPages++
			report.TotalCorrections += len(rec.Changes)
		}
		report.Pages = append(report.Pages, &rec)
	}
	return report, nil
}
