package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/db"
	"github.com/jonathan/ocr-review/internal/document"
	"github.com/jonathan/ocr-review/internal/observability"
	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/pipeline/steps"
	"github.com/jonathan/ocr-review/internal/store"
)

type mockRuns struct {
	runs []db.Run
	err  error
}

func (m *mockRuns) ListRuns(_ context.Context, project string, limit int) ([]db.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []db.Run
	for _, r := range m.runs {
		if r.Project == project {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuns) GetRun(_ context.Context, runID uuid.UUID) (*db.Run, error) {
	for i := range m.runs {
		if m.runs[i].ID == runID {
			return &m.runs[i], nil
		}
	}
	return nil, nil
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, page := range []int{1, 2} {
		require.NoError(t, st.Save(ctx, store.StagePages, page, &pipeline.PageRecord{
			Page: page, BookPage: page + 36, Status: pipeline.StatusSuccess,
			ParsedJSON: document.MustParse(`{"data": [{"type": "paragraph", "text": "שלום"}]}`),
		}))
	}
	require.NoError(t, st.Save(ctx, store.StageQA, 1, &pipeline.QARecord{
		Page: 1, BookPage: 37, Status: pipeline.StatusSuccess,
		ParsedQA: document.MustParse(`{"overall_quality": "excellent", "summary": "clean", "issues": []}`),
	}))
	require.NoError(t, st.Save(ctx, store.StageCorrected, 1, &pipeline.CorrectedRecord{
		Page: 1, BookPage: 37, Status: pipeline.StatusSuccess,
		Method: correction.MethodNoCorrectionsNeeded, Changes: []correction.Change{},
		CorrectedJSON: document.MustParse(`{"data": [{"type": "paragraph", "text": "שלום"}]}`),
	}))
	require.NoError(t, st.SaveSummary(ctx, store.StagePages, &pipeline.RunSummary{
		Stage: store.StagePages, Total: 2, Success: 2, FailedPages: []int{},
	}))
	return st
}

func newTestServer(t *testing.T, runs RunLister) http.Handler {
	t.Helper()
	s := New(Config{Project: "book", Pages: []int{1, 2}}, Options{
		Store:   seededStore(t),
		Runs:    runs,
		Metrics: observability.NewMetrics(),
	})
	return s.Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandleHealth(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestHandleSteps(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/steps")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StepsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Steps, 4)
	assert.Equal(t, StepStatus{Step: steps.StepExtract, Stage: store.StagePages, Stored: 2, Total: 2, Completed: true}, resp.Steps[0])
	assert.Equal(t, 1, resp.Steps[1].Stored)
	assert.Equal(t, []string{steps.StepReview, steps.StepApply}, resp.Available)
	assert.Equal(t, []string{steps.StepRender}, resp.Blocked)
}

func TestHandleRecords(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains string
	}{
		{"page record", "/stages/pages/pages/1", http.StatusOK, `"book_page": 37`},
		{"missing page", "/stages/qa/pages/2", http.StatusNotFound, "no qa record for page 2"},
		{"bad page", "/stages/qa/pages/zero", http.StatusBadRequest, "positive integer"},
		{"unknown stage", "/stages/drafts/pages/1", http.StatusBadRequest, "unknown stage"},
		{"page list", "/stages/pages/pages", http.StatusOK, `"count":2`},
		{"summary", "/stages/pages/summary", http.StatusOK, `"success": 2`},
		{"missing summary", "/stages/qa/summary", http.StatusNotFound, "error"},
		{"corrections summary key", "/stages/corrections/summary", http.StatusNotFound, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.path)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestHandleViewers(t *testing.T) {
	h := newTestServer(t, nil)

	w := get(t, h, "/viewer/qa")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "missing_pages")

	w = get(t, h, "/viewer/corrected")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "שלום")
	assert.Contains(t, w.Body.String(), "OCR Review - Corrected")
}

func TestHandleRuns(t *testing.T) {
	id := uuid.New()
	runs := &mockRuns{runs: []db.Run{
		{ID: id, Project: "book", Stage: store.StagePages, Status: db.RunStatusCompleted, Total: 2, Success: 2, CreatedAt: time.Now()},
		{ID: uuid.New(), Project: "other", Stage: store.StageQA},
	}}
	h := newTestServer(t, runs)

	w := get(t, h, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = get(t, h, "/runs/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/"+uuid.New().String()).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs/not-a-uuid").Code)

	runs.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/runs").Code)
}

func TestHandleRuns_NoDatabase(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/runs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleMetrics(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ErrValidation{Field: "page"}, http.StatusBadRequest},
		{"run", &ErrRunNotFound{RunID: uuid.New()}, http.StatusNotFound},
		{"store", &store.NotFoundError{Stage: store.StageQA, Page: 3}, http.StatusNotFound},
		{"dependency", &steps.DependencyError{Step: steps.StepRender}, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
