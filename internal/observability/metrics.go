package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	// PagesProcessed counts finished pages per stage and status
	PagesProcessed *prometheus.CounterVec
	// PageDuration tracks wall time per page
	PageDuration *prometheus.HistogramVec
	// RecoveryStrategy counts which recovery strategy produced a document
	RecoveryStrategy *prometheus.CounterVec
	// ModelAttempts counts model call attempts per stage
	ModelAttempts *prometheus.CounterVec
	// ModelLatency tracks model call latency including retries
	ModelLatency *prometheus.HistogramVec
	// ModelTokens counts prompt and output tokens
	ModelTokens *prometheus.CounterVec
	// CorrectionChanges counts merge changes per method
	CorrectionChanges *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_pages_processed_total",
				Help: "Total number of pages processed",
			},
			[]string{"stage", "status"},
		),
		PageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocr_page_duration_seconds",
				Help:    "Page processing time in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
			},
			[]string{"stage"},
		),
		RecoveryStrategy: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_recovery_strategy_total",
				Help: "Documents recovered per strategy",
			},
			[]string{"stage", "strategy"},
		),
		ModelAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_model_attempts_total",
				Help: "Total number of model call attempts",
			},
			[]string{"stage", "model"},
		),
		ModelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocr_model_latency_seconds",
				Help:    "Model call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"stage", "model"},
		),
		ModelTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_model_tokens_total",
				Help: "Model tokens by direction",
			},
			[]string{"stage", "direction"},
		),
		CorrectionChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_correction_changes_total",
				Help: "Correction changes applied per merge method",
			},
			[]string{"method"},
		),
	}
}

// Registry exposes the registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePage records a finished page.
func (m *Metrics) ObservePage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesProcessed.WithLabelValues(stage, status).Inc()
	m.PageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRecovery records the strategy that produced a document.
func (m *Metrics) ObserveRecovery(stage, strategy string) {
	if m == nil || strategy == "" {
		return
	}
	m.RecoveryStrategy.WithLabelValues(stage, strategy).Inc()
}

// ObserveModelCall records one model call and its retries.
func (m *Metrics) ObserveModelCall(stage, model string, attempts int, d time.Duration, promptTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.ModelAttempts.WithLabelValues(stage, model).Add(float64(attempts))
	m.ModelLatency.WithLabelValues(stage, model).Observe(d.Seconds())
	m.ModelTokens.WithLabelValues(stage, "prompt").Add(float64(promptTokens))
	m.ModelTokens.WithLabelValues(stage, "output").Add(float64(outputTokens))
}

// ObserveCorrection records the changes of one merge.
func (m *Metrics) ObserveCorrection(method string, changes int) {
	if m == nil {
		return
	}
	m.CorrectionChanges.WithLabelValues(method).Add(float64(changes))
}

// MetricsServer serves /metrics for the duration of a run.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer creates a server on addr backed by the metrics registry.
func NewMetricsServer(addr string, m *Metrics, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background.
func (s *MetricsServer) Start() {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
}

// Stop shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
