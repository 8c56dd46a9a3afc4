// Package server provides a read-only HTTP API over stage records, run
// summaries and the HTML viewers of an output directory.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/ocr-review/internal/db"
	"github.com/jonathan/ocr-review/internal/observability"
	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/pipeline/steps"
	"github.com/jonathan/ocr-review/internal/raster"
	"github.com/jonathan/ocr-review/internal/rendering"
	"github.com/jonathan/ocr-review/internal/store"
)

// RunLister is the part of the database the server reads run history from.
type RunLister interface {
	ListRuns(ctx context.Context, project string, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
}

var _ RunLister = (*db.DB)(nil)

// Config holds server configuration
type Config struct {
	Addr    string
	Title   string
	Project string
	Pages   []int
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      store.Store
	runs       RunLister
	viewers    *rendering.Builder
	logger     *slog.Logger
	cfg        Config
}

// Options carries the collaborators of a Server. Source, Runs and Metrics
// are optional.
type Options struct {
	Store   store.Store
	Source  raster.Source
	Runs    RunLister
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// New creates a new server instance
func New(cfg Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Title == "" {
		cfg.Title = "OCR Review"
	}

	s := &Server{
		store:  opts.Store,
		runs:   opts.Runs,
		logger: logger,
		cfg:    cfg,
		viewers: &rendering.Builder{
			Store:  opts.Store,
			Source: opts.Source,
			Logger: logger,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /steps", s.handleSteps)
	mux.HandleFunc("GET /stages/{stage}/summary", s.handleSummary)
	mux.HandleFunc("GET /stages/{stage}/pages", s.handleListPages)
	mux.HandleFunc("GET /stages/{stage}/pages/{page}", s.handleGetPage)
	mux.HandleFunc("GET /viewer/qa", s.handleQAViewer)
	mux.HandleFunc("GET /viewer/corrected", s.handleCorrectedViewer)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withLogging(s.withCORS(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute, // viewers render every page image
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start), "remote", r.RemoteAddr)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StepStatus is the progress of one step over the served page set.
type StepStatus struct {
	Step      string `json:"step"`
	Stage     string `json:"stage,omitempty"`
	Stored    int    `json:"stored"`
	Total     int    `json:"total"`
	Completed bool   `json:"completed"`
}

// StepsResponse lists step progress and which steps can run next.
type StepsResponse struct {
	Steps     []StepStatus `json:"steps"`
	Available []string     `json:"available"`
	Blocked   []string     `json:"blocked"`
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StepsResponse{Steps: make([]StepStatus, 0, len(steps.Order))}

	for _, name := range steps.Order {
		def := steps.StepRegistry[name]
		st := StepStatus{Step: name, Stage: def.Output, Total: len(s.cfg.Pages)}
		if def.Output != "" {
			stored, err := s.store.Pages(ctx, def.Output)
			if err != nil {
				s.fail(w, err)
				return
			}
			st.Stored = countIn(stored, s.cfg.Pages)
			st.Completed = st.Stored == st.Total
		}
		resp.Steps = append(resp.Steps, st)
	}

	var err error
	if resp.Available, err = steps.GetAvailableSteps(ctx, s.store, s.cfg.Pages); err != nil {
		s.fail(w, err)
		return
	}
	if resp.Blocked, err = steps.GetBlockedSteps(ctx, s.store, s.cfg.Pages); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !validSummary(stage) {
		s.fail(w, &ErrValidation{Field: "stage", Message: "unknown stage " + strconv.Quote(stage)})
		return
	}
	var raw json.RawMessage
	if err := s.store.LoadSummary(r.Context(), stage, &raw); err != nil {
		s.fail(w, err)
		return
	}
	s.rawResponse(w, raw)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !validStage(stage) {
		s.fail(w, &ErrValidation{Field: "stage", Message: "unknown stage " + strconv.Quote(stage)})
		return
	}
	pages, err := s.store.Pages(r.Context(), stage)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"stage": stage,
		"pages": pages,
		"count": len(pages),
	})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !validStage(stage) {
		s.fail(w, &ErrValidation{Field: "stage", Message: "unknown stage " + strconv.Quote(stage)})
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page <= 0 {
		s.fail(w, &ErrValidation{Field: "page", Message: "must be a positive integer"})
		return
	}

	var raw json.RawMessage
	if err := s.store.Load(r.Context(), stage, page, &raw); err != nil {
		s.fail(w, err)
		return
	}
	s.rawResponse(w, raw)
}

func (s *Server) handleQAViewer(w http.ResponseWriter, r *http.Request) {
	pages := s.cfg.Pages
	if err := steps.ValidateDependencies(r.Context(), s.store, steps.StepRender, pages); err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.viewers.BuildQAViewer(r.Context(), s.cfg.Title+" - QA", pages)
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := rendering.RenderQAViewer(&buf, v); err != nil {
		s.fail(w, err)
		return
	}
	s.htmlResponse(w, buf.Bytes())
}

func (s *Server) handleCorrectedViewer(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewers.BuildCorrectedViewer(r.Context(), s.cfg.Title+" - Corrected", s.cfg.Pages)
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := rendering.RenderCorrectedViewer(&buf, v); err != nil {
		s.fail(w, err)
		return
	}
	s.htmlResponse(w, buf.Bytes())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotFound, "run history requires a database")
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}
	runs, err := s.runs.ListRuns(r.Context(), s.cfg.Project, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotFound, "run history requires a database")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.fail(w, &ErrValidation{Field: "id", Message: "invalid run id"})
		return
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if run == nil {
		s.fail(w, &ErrRunNotFound{RunID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response", "error", err)
	}
}

// rawResponse writes a stored JSON record unchanged.
func (s *Server) rawResponse(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) htmlResponse(w http.ResponseWriter, html []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it. Server errors are logged.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	var depErr *steps.DependencyError
	if errors.As(err, &depErr) {
		s.jsonResponse(w, status, map[string]any{
			"error":         err.Error(),
			"missing_pages": depErr.MissingPages,
		})
		return
	}
	s.errorResponse(w, status, err.Error())
}

func validStage(stage string) bool {
	switch stage {
	case store.StagePages, store.StageQA, store.StageCorrected:
		return true
	}
	return false
}

func validSummary(stage string) bool {
	return validStage(stage) || stage == pipeline.StageCorrections
}

func countIn(stored, pages []int) int {
	set := make(map[int]bool, len(stored))
	for _, p := range stored {
		set[p] = true
	}
	n := 0
	for _, p := range pages {
		if set[p] {
			n++
		}
	}
	return n
}
