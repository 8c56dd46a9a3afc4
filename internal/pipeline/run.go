// Package pipeline runs per-page stages over a fixed page set with a bounded
// worker pool and records the outcome of every page.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/ocr-review/internal/document"
	"github.com/jonathan/ocr-review/internal/llm"
	"github.com/jonathan/ocr-review/internal/observability"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 16

// Page outcomes.
const (
	StatusSuccess        = "success"
	StatusPartialFailure = "partial_failure"
	StatusFailed         = "failed"
)

// PageResult is the outcome of one page in one run.
type PageResult struct {
	Page     int             `json:"page"`
	Status   string          `json:"status"`
	Document *document.Value `json:"-"`
	Attempts int             `json:"attempts,omitempty"`
	Error    string          `json:"error,omitempty"`
	Strategy string          `json:"strategy,omitempty"`
	Method   string          `json:"method,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Duration time.Duration   `json:"duration_ns"`
}

// RunSummary aggregates the results of one run. It is not modified after the
// run returns it.
type RunSummary struct {
	RunID          uuid.UUID     `json:"run_id"`
	Stage          string        `json:"stage"`
	Total          int           `json:"total"`
	Success        int           `json:"success"`
	PartialFailure int           `json:"partial_failure"`
	Failed         int           `json:"failed"`
	FailedPages    []int         `json:"failed_pages"`
	Results        []PageResult  `json:"results"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// PageFunc processes one page. A returned error marks the page failed; a nil
// result with a nil error counts as success.
type PageFunc func(ctx context.Context, page int) (*PageResult, error)

// ProgressFunc is called once per finished page.
type ProgressFunc func(result PageResult, done, total int)

// Runner executes a PageFunc over a page set.
type Runner struct {
	Concurrency int
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	OnProgress  ProgressFunc
}

// NewRunner creates a runner with the given pool size.
func NewRunner(concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{Concurrency: concurrency, Logger: logger, Metrics: metrics}
}

// Pages returns the ids 1..n.
func Pages(n int) []int {
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Run processes every page and returns the summary. Failures of one page never
// affect the others, and Run always returns a summary.
func (r *Runner) Run(ctx context.Context, stage string, pages []int, fn PageFunc) *RunSummary {
	started := time.Now()
	logger := r.logger().With("stage", stage)

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]PageResult, len(pages))
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(limit)

	for i, page := range pages {
		g.Go(func() error {
			res := r.runPage(ctx, stage, page, fn)
			results[i] = res

			r.Metrics.ObservePage(stage, res.Status, res.Duration)
			r.Metrics.ObserveRecovery(stage, res.Strategy)
			switch res.Status {
			case StatusSuccess:
				logger.Info("page done", "page", page, "duration", res.Duration.Round(time.Millisecond))
			default:
				logger.Warn("page not completed", "page", page, "status", res.Status, "error", res.Error)
			}

			if r.OnProgress != nil {
				mu.Lock()
				done++
				n := done
				mu.Unlock()
				r.OnProgress(res, n, len(pages))
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := summarize(stage, results)
	summary.RunID = uuid.New()
	summary.StartedAt = started
	summary.Elapsed = time.Since(started)
	return summary
}

// Retry re-runs fn on the pages prev did not complete and returns a new
// summary holding the previous results with those pages replaced. Model calls
// made during a retry skip cached responses.
func (r *Runner) Retry(ctx context.Context, prev *RunSummary, fn PageFunc) *RunSummary {
	retried := r.Run(llm.WithoutCachedResponses(ctx), prev.Stage, prev.FailedPages, fn)

	merged := make(map[int]PageResult, len(prev.Results))
	for _, res := range prev.Results {
		merged[res.Page] = res
	}
	for _, res := range retried.Results {
		merged[res.Page] = res
	}

	results := make([]PageResult, 0, len(merged))
	for _, res := range merged {
		results = append(results, res)
	}

	summary := summarize(prev.Stage, results)
	summary.RunID = retried.RunID
	summary.StartedAt = retried.StartedAt
	summary.Elapsed = retried.Elapsed
	return summary
}

func (r *Runner) runPage(ctx context.Context, stage string, page int, fn PageFunc) (res PageResult) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("page panicked", "stage", stage, "page", page, "panic", p, "stack", string(debug.Stack()))
			res = PageResult{Page: page, Status: StatusFailed, Error: fmt.Sprintf("panic: %v", p)}
		}
		res.Page = page
		res.Duration = time.Since(started)
	}()

	out, err := fn(ctx, page)
	if out != nil {
		res = *out
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	if res.Status == "" {
		res.Status = StatusSuccess
	}
	return res
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func summarize(stage string, results []PageResult) *RunSummary {
	sort.Slice(results, func(i, j int) bool { return results[i].Page < results[j].Page })

	s := &RunSummary{
		Stage:       stage,
		Total:       len(results),
		FailedPages: []int{},
		Results:     results,
	}
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			s.Success++
		case StatusPartialFailure:
			s.PartialFailure++
		default:
			s.Failed++
		}
		if res.Status != StatusSuccess {
			s.FailedPages = append(s.FailedPages, res.Page)
		}
	}
	return s
}

// Complete reports whether every page succeeded.
func (s *RunSummary) Complete() bool {
	return s.Success == s.Total
}

// Result returns the result for a page.
func (s *RunSummary) Result(page int) (PageResult, bool) {
	i := sort.Search(len(s.Results), func(i int) bool { return s.Results[i].Page >= page })
	if i < len(s.Results) && s.Results[i].Page == page {
		return s.Results[i], true
	}
	return PageResult{}, false
}

// View converts the summary for the CLI printer.
func (s *RunSummary) View() *observability.RunView {
	v := &observability.RunView{
		Stage:          s.Stage,
		Total:          s.Total,
		Success:        s.Success,
		PartialFailure: s.PartialFailure,
		Failed:         s.Failed,
		FailedPages:    s.FailedPages,
		Elapsed:        s.Elapsed,
	}
	for _, res := range s.Results {
		if res.Strategy != "" {
			if v.Strategies == nil {
				v.Strategies = map[string]int{}
			}
			v.Strategies[res.Strategy]++
		}
		if res.Method != "" {
			if v.Methods == nil {
				v.Methods = map[string]int{}
			}
			v.Methods[res.Method]++
		}
	}
	return v
}

// FailureLines lists non-success pages for the CLI printer.
func (s *RunSummary) FailureLines() []observability.PageLine {
	var lines []observability.PageLine
	for _, res := range s.Results {
		if res.Status != StatusSuccess {
			lines = append(lines, observability.PageLine{Page: res.Page, Status: res.Status, Error: res.Error})
		}
	}
	return lines
}
