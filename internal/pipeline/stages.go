package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/document"
	"github.com/jonathan/ocr-review/internal/llm"
	"github.com/jonathan/ocr-review/internal/observability"
	"github.com/jonathan/ocr-review/internal/prompts"
	"github.com/jonathan/ocr-review/internal/raster"
	"github.com/jonathan/ocr-review/internal/recovery"
	"github.com/jonathan/ocr-review/internal/review"
	"github.com/jonathan/ocr-review/internal/schemas"
	"github.com/jonathan/ocr-review/internal/store"
)

// Generation defaults used by both model stages.
const (
	DefaultMaxTokens       = 16000
	DefaultReasoningBudget = 10000
	DefaultTemperature     = float32(1.0)
	DefaultBookPageOffset  = 36
)

// GenerationOptions are the sampling parameters of a model stage.
type GenerationOptions struct {
	Tier            llm.ModelTier
	MaxTokens       int
	Temperature     *float32
	ReasoningBudget int
}

// DefaultGeneration returns the options used for OCR and review calls.
func DefaultGeneration() GenerationOptions {
	temp := DefaultTemperature
	return GenerationOptions{
		Tier:            llm.TierAdvanced,
		MaxTokens:       DefaultMaxTokens,
		Temperature:     &temp,
		ReasoningBudget: DefaultReasoningBudget,
	}
}

// Stages builds the per-page functions of the extract, review and apply
// stages from shared collaborators. Model and Source are only needed by the
// stages that call the model.
type Stages struct {
	Model  llm.Client
	Source raster.Source
	Store  store.Store

	Engine      *recovery.Engine
	PageSchema  *schemas.Validator
	QASchema    *schemas.Validator
	Generation  GenerationOptions
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Instruction string

	BookPageOffset int
}

// BookPage maps a PDF page to its printed page number.
func (s *Stages) BookPage(page int) int {
	return page + s.BookPageOffset
}

// Extract returns the OCR stage: render, call the model, recover, persist.
func (s *Stages) Extract() PageFunc {
	return func(ctx context.Context, page int) (*PageResult, error) {
		rec := &PageRecord{Page: page, BookPage: s.BookPage(page)}

		img, err := s.Source.Render(ctx, page)
		if err != nil {
			return nil, s.fail(ctx, store.StagePages, page, rec, "render failed", err)
		}

		pagePrompt := prompts.MustGet(prompts.OCRFile, prompts.KeyPage)
		instructions := s.Instruction
		if instructions == "" {
			instructions = prompts.MustGet(prompts.OCRFile, prompts.KeySystem)
		}

		resp, err := s.generate(ctx, store.StagePages, instructions, prompts.Format(pagePrompt, map[string]string{
			"Page":     strconv.Itoa(page),
			"BookPage": strconv.Itoa(rec.BookPage),
		}), img)
		if err != nil {
			return nil, s.fail(ctx, store.StagePages, page, rec, "model call failed", err)
		}
		rec.Model = resp.Model
		rec.RawResponse = resp.Text
		rec.Thinking = resp.Reasoning
		rec.Usage = &resp.Usage

		result := &PageResult{Attempts: resp.Attempts}
		if rr, err := s.engine().Recover(resp.Text); err != nil {
			rec.Status = StatusPartialFailure
			rec.Error = err.Error()
			result.Status = StatusPartialFailure
			result.Error = rec.Error
		} else {
			rec.Status = StatusSuccess
			rec.ParsedJSON = rr.Document
			rec.RecoveryStrategy = rr.Strategy
			rec.SchemaErrors = validate(s.PageSchema, rr.Document)
			result.Status = StatusSuccess
			result.Document = rr.Document
			result.Strategy = rr.Strategy
			result.Warnings = rec.SchemaErrors
		}

		if err := s.Store.Save(ctx, store.StagePages, page, rec); err != nil {
			return result, &StageError{Stage: store.StagePages, Page: page, Message: "save failed", Cause: err}
		}
		return result, nil
	}
}

// Review returns the QA stage: load the OCR record, render, ask the reviewer,
// recover its report, persist.
func (s *Stages) Review() PageFunc {
	return func(ctx context.Context, page int) (*PageResult, error) {
		rec := &QARecord{Page: page, BookPage: s.BookPage(page)}

		var ocr PageRecord
		if err := s.Store.Load(ctx, store.StagePages, page, &ocr); err != nil {
			return nil, s.fail(ctx, store.StageQA, page, rec, "OCR record unavailable", err)
		}
		if ocr.ParsedJSON == nil {
			return nil, s.fail(ctx, store.StageQA, page, rec, "OCR record has no document", nil)
		}

		img, err := s.Source.Render(ctx, page)
		if err != nil {
			return nil, s.fail(ctx, store.StageQA, page, rec, "render failed", err)
		}

		instructions := s.Instruction
		if instructions == "" {
			if instructions, err = prompts.OCRInstructions(""); err != nil {
				return nil, s.fail(ctx, store.StageQA, page, rec, "prompt unavailable", err)
			}
		}
		prompt, err := review.BuildPrompt(page, rec.BookPage, instructions, ocr.ParsedJSON)
		if err != nil {
			return nil, s.fail(ctx, store.StageQA, page, rec, "prompt unavailable", err)
		}

		resp, err := s.generate(ctx, store.StageQA, prompt.System, prompt.User, img)
		if err != nil {
			return nil, s.fail(ctx, store.StageQA, page, rec, "model call failed", err)
		}
		rec.Model = resp.Model
		rec.RawResponse = resp.Text
		rec.Thinking = resp.Reasoning
		rec.Usage = &resp.Usage

		result := &PageResult{Attempts: resp.Attempts}
		if rr, err := s.engine().Recover(resp.Text); err != nil {
			rec.Status = StatusPartialFailure
			rec.Error = err.Error()
			result.Status = StatusPartialFailure
			result.Error = rec.Error
		} else {
			rec.Status = StatusSuccess
			rec.ParsedQA = rr.Document
			rec.RecoveryStrategy = rr.Strategy
			rec.SchemaErrors = validate(s.QASchema, rr.Document)
			result.Status = StatusSuccess
			result.Document = rr.Document
			result.Strategy = rr.Strategy
			result.Warnings = rec.SchemaErrors
		}

		if err := s.Store.Save(ctx, store.StageQA, page, rec); err != nil {
			return result, &StageError{Stage: store.StageQA, Page: page, Message: "save failed", Cause: err}
		}
		return result, nil
	}
}

// Apply returns the correction stage. It makes no model call: the page's OCR
// document is merged with its review and the outcome is persisted. A page
// without a usable review keeps its original document.
func (s *Stages) Apply() PageFunc {
	return func(ctx context.Context, page int) (*PageResult, error) {
		var ocr PageRecord
		if err := s.Store.Load(ctx, store.StagePages, page, &ocr); err != nil {
			return nil, &StageError{Stage: store.StageCorrected, Page: page, Message: "OCR record unavailable", Cause: err}
		}

		rec := &CorrectedRecord{
			Page:     page,
			BookPage: s.BookPage(page),
			Status:   StatusSuccess,
			Changes:  []correction.Change{},
		}
		result := &PageResult{Status: StatusSuccess}

		switch {
		case ocr.ParsedJSON == nil:
			rec.Method = correction.MethodNoParsedJSON
			rec.Status = StatusPartialFailure
			rec.Summary = "no parsed document available"
			rec.CorrectedJSON = document.Mapping()
			result.Status = StatusPartialFailure
			result.Error = rec.Summary

		default:
			report, err := s.loadReport(ctx, page)
			if err != nil {
				return nil, &StageError{Stage: store.StageCorrected, Page: page, Message: "review unavailable", Cause: err}
			}
			if report == nil {
				rec.Method = correction.MethodQAParseFailed
				rec.Summary = "no usable review, keeping original"
				rec.CorrectedJSON = ocr.ParsedJSON
				break
			}

			merged := correction.Merge(ocr.ParsedJSON, report.Directives())
			rec.Method = merged.Method
			rec.Modified = merged.Modified()
			rec.Changes = merged.Changes
			rec.Quality = report.Quality()
			rec.Summary = report.Summary
			rec.IssuesCount = len(report.Issues)
			rec.CorrectedJSON = merged.Document
			s.Metrics.ObserveCorrection(string(merged.Method), len(merged.Changes))
		}

		result.Method = string(rec.Method)
		result.Document = rec.CorrectedJSON
		if err := s.Store.Save(ctx, store.StageCorrected, page, rec); err != nil {
			return result, &StageError{Stage: store.StageCorrected, Page: page, Message: "save failed", Cause: err}
		}
		return result, nil
	}
}

// loadReport returns nil without error when the page has no usable review.
func (s *Stages) loadReport(ctx context.Context, page int) (*review.Report, error) {
	var qa QARecord
	if err := s.Store.Load(ctx, store.StageQA, page, &qa); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if qa.ParsedQA == nil {
		return nil, nil
	}
	report, err := review.ParseReport(qa.ParsedQA)
	if err != nil {
		s.logger().Warn("ignoring unreadable review", "page", page, "error", err)
		return nil, nil
	}
	return report, nil
}

func (s *Stages) generate(ctx context.Context, stage, system, prompt string, img []byte) (*llm.RawResponse, error) {
	req := &llm.Request{
		Tier:            s.Generation.Tier,
		System:          system,
		Prompt:          prompt,
		Images:          []llm.Image{{MIMEType: raster.MIMEType, Data: img}},
		MaxTokens:       s.Generation.MaxTokens,
		Temperature:     s.Generation.Temperature,
		ReasoningBudget: s.Generation.ReasoningBudget,
	}
	if req.Tier == "" {
		req.Tier = llm.TierAdvanced
	}

	started := time.Now()
	resp, err := s.Model.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.Metrics.ObserveModelCall(stage, resp.Model, resp.Attempts, time.Since(started), resp.Usage.PromptTokens, resp.Usage.OutputTokens)
	return resp, nil
}

// fail persists a failed record for audit and returns the stage error. A
// failed save is logged; the original cause is what the page reports.
func (s *Stages) fail(ctx context.Context, stage string, page int, rec any, msg string, cause error) error {
	stageErr := &StageError{Stage: stage, Page: page, Message: msg, Cause: cause}

	switch r := rec.(type) {
	case *PageRecord:
		r.Status = StatusFailed
		r.Error = stageErr.Error()
	case *QARecord:
		r.Status = StatusFailed
		r.Error = stageErr.Error()
	}
	if err := s.Store.Save(ctx, stage, page, rec); err != nil {
		s.logger().Warn("failed to persist failure record", "stage", stage, "page", page, "error", err)
	}
	return stageErr
}

func (s *Stages) engine() *recovery.Engine {
	if s.Engine == nil {
		return recovery.NewEngine()
	}
	return s.Engine
}

func (s *Stages) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func validate(v *schemas.Validator, doc *document.Value) []string {
	if v == nil {
		return nil
	}
	return schemas.Messages(v.Validate(doc))
}
