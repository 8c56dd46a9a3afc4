package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/cache"
	"github.com/jonathan/ocr-review/internal/config"
	"github.com/jonathan/ocr-review/internal/db"
	"github.com/jonathan/ocr-review/internal/llm"
	"github.com/jonathan/ocr-review/internal/observability"
	"github.com/jonathan/ocr-review/internal/pipeline"
	"github.com/jonathan/ocr-review/internal/prompts"
	"github.com/jonathan/ocr-review/internal/raster"
	"github.com/jonathan/ocr-review/internal/recovery"
	"github.com/jonathan/ocr-review/internal/schemas"
	"github.com/jonathan/ocr-review/internal/store"
)

var _ llm.ResponseCache = (*cache.Redis)(nil)

// loadSettings merges the config file, the flags that were set and the
// defaults, in that order of precedence: flags, file, defaults.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if flagConfig != "" {
		loaded, err := config.LoadConfig(flagConfig)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = flagOut
	}
	if flags.Changed("project") {
		cfg.Project = flagProject
	}
	if flags.Changed("pages") {
		cfg.WorkItemCount = flagPages
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrency = flagConcurrency
	}
	if flags.Changed("debug") && flagDebug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = flagRedisURL
	}
	if flags.Changed("pdf") {
		cfg.PDF = flagPDF
		cfg.ImagesDir = ""
	}
	if flags.Changed("images-dir") {
		cfg.ImagesDir = flagImagesDir
		if !flags.Changed("pdf") {
			cfg.PDF = ""
		}
	}
	if flags.Changed("provider") {
		cfg.Provider = flagProvider
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("dpi") {
		cfg.DPI = flagDPI
	}
	if flags.Changed("book-page-offset") {
		offset := flagOffset
		cfg.BookPageOffset = &offset
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if cfg.APIKey == "" {
		cfg.APIKey = apiKeyFromEnv(llm.Provider(cfg.Provider))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func apiKeyFromEnv(provider llm.Provider) string {
	if provider == llm.ProviderOpenRouter {
		return os.Getenv("OPENROUTER_API_KEY")
	}
	return os.Getenv("GEMINI_API_KEY")
}

// environment holds the collaborators shared by the stage commands.
type environment struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	printer *observability.Printer
	out     io.Writer

	files    *store.FileStore
	database *db.DB
	dbStore  *store.DBStore

	model  llm.Client
	source raster.Source

	closers []func()
}

type needs struct {
	model  bool
	source bool
}

func openEnvironment(ctx context.Context, cmd *cobra.Command, n needs) (*environment, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:     cfg,
		logger:  observability.InitDefault(observability.ParseLevel(cfg.LogLevel)),
		metrics: observability.NewMetrics(),
		printer: observability.NewPrinter(cmd.OutOrStdout()),
		out:     cmd.OutOrStdout(),
	}
	ok := false
	defer func() {
		if !ok {
			env.Close()
		}
	}()

	if cfg.MetricsAddr != "" {
		server := observability.NewMetricsServer(cfg.MetricsAddr, env.metrics, env.logger)
		server.Start()
		env.closers = append(env.closers, func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		})
	}

	if env.files, err = store.NewFileStore(cfg.OutputDir); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			return nil, err
		}
		env.database = database
		env.dbStore = store.NewDBStore(database, cfg.Project)
		env.logger.Debug("database storage enabled", "project", cfg.Project)
	}

	if n.model {
		if err := env.openModel(ctx); err != nil {
			return nil, err
		}
	}
	if n.source || cfg.PDF != "" || cfg.ImagesDir != "" {
		if err := env.openSource(n.source); err != nil {
			return nil, err
		}
	}

	ok = true
	return env, nil
}

func (env *environment) openModel(ctx context.Context) error {
	cfg := env.cfg
	if cfg.APIKey == "" {
		return fmt.Errorf("an API key is required for provider %s (set --api-key or the provider env var)", cfg.Provider)
	}

	llmCfg := llm.ConfigFor(llm.Provider(cfg.Provider))
	if cfg.Model != "" {
		llmCfg = llmCfg.WithModel(llm.TierAdvanced, cfg.Model)
	}
	llmCfg.RetryBound = cfg.RetryBound
	llmCfg.AttemptTimeout = cfg.AttemptTimeoutDuration()

	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	env.closers = append(env.closers, func() { _ = client.Close() })
	env.model = client

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cache.Config{URL: cfg.RedisURL, TTL: cfg.CacheTTL()})
		if err != nil {
			env.logger.Warn("response cache disabled", "error", err)
			return nil
		}
		env.closers = append(env.closers, func() { _ = rc.Close() })
		env.model = llm.NewCachedClient(client, rc, env.logger)
		env.logger.Debug("response cache enabled")
	}
	return nil
}

func (env *environment) openSource(required bool) error {
	cfg := env.cfg
	var (
		src raster.Source
		err error
	)
	switch {
	case cfg.PDF != "":
		cacheDir := cfg.RenderCacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(cfg.OutputDir, "images")
		}
		src, err = raster.NewPDFSource(cfg.PDF, raster.PDFOptions{
			DPI:      float64(cfg.DPI),
			MaxWidth: cfg.MaxWidth,
			CacheDir: cacheDir,
		})
	case cfg.ImagesDir != "":
		src, err = raster.NewDirSource(cfg.ImagesDir, cfg.MaxWidth)
	default:
		if required {
			return fmt.Errorf("page images are required: set --pdf or --images-dir")
		}
		return nil
	}
	if err != nil {
		return err
	}
	env.closers = append(env.closers, func() { _ = src.Close() })
	env.source = src
	return nil
}

// Close releases everything opened, in reverse order.
func (env *environment) Close() {
	for i := len(env.closers) - 1; i >= 0; i-- {
		env.closers[i]()
	}
	env.closers = nil
}

// pages returns the work set: 1..work_item_count, capped by the page source.
func (env *environment) pages() []int {
	n := env.cfg.WorkItemCount
	if env.source != nil && env.source.PageCount() < n {
		env.logger.Warn("page source is shorter than the work set", "pages", env.source.PageCount(), "requested", n)
		n = env.source.PageCount()
	}
	return pipeline.Pages(n)
}

// storeFor returns the store a run writes through: the output directory,
// mirrored to the database when one is configured.
func (env *environment) storeFor(runID uuid.UUID) store.Store {
	if env.dbStore == nil {
		return env.files
	}
	secondary := env.dbStore
	if runID != uuid.Nil {
		secondary = secondary.WithRun(runID)
	}
	return store.NewMirror(env.files, secondary)
}

// stages builds the stage functions over st.
func (env *environment) stages(st store.Store) (*pipeline.Stages, error) {
	cfg := env.cfg
	instruction, err := prompts.OCRInstructions(cfg.OCRPrompt)
	if err != nil {
		return nil, err
	}

	s := &pipeline.Stages{
		Model:          env.model,
		Source:         env.source,
		Store:          st,
		Engine:         recovery.NewEngine(),
		Generation:     pipeline.DefaultGeneration(),
		Logger:         env.logger,
		Metrics:        env.metrics,
		Instruction:    instruction,
		BookPageOffset: cfg.Offset(),
	}
	if cfg.MaxTokens > 0 {
		s.Generation.MaxTokens = cfg.MaxTokens
	}
	if cfg.ReasoningBudget > 0 {
		s.Generation.ReasoningBudget = cfg.ReasoningBudget
	}

	if s.PageSchema, err = loadSchema(cfg.PageSchema, "schemas/page.schema.json"); err != nil {
		return nil, err
	}
	if s.QASchema, err = loadSchema(cfg.QASchema, "schemas/qa_report.schema.json"); err != nil {
		return nil, err
	}
	return s, nil
}

// loadSchema compiles the configured schema, or the bundled one when it can be
// found. Schema validation is advisory, so a missing bundled schema is not an error.
func loadSchema(configured, bundled string) (*schemas.Validator, error) {
	path := configured
	if path == "" {
		path = schemas.ResolveSchemaPath(bundled)
		if path == "" {
			return nil, nil
		}
	}
	return schemas.NewValidator(path)
}

// runner returns a worker pool that logs progress at debug level.
func (env *environment) runner() *pipeline.Runner {
	r := pipeline.NewRunner(env.cfg.MaxConcurrency, env.logger, env.metrics)
	r.OnProgress = func(res pipeline.PageResult, done, total int) {
		env.logger.Debug("page finished", "page", res.Page, "status", res.Status, "done", done, "total", total)
	}
	return r
}

// execStage runs fn over pages as one tracked run: the run is recorded in the
// database when configured, the summary is persisted and printed.
func (env *environment) execStage(ctx context.Context, stage string, pages []int, build func(*pipeline.Stages) pipeline.PageFunc, prev *pipeline.RunSummary) (*pipeline.RunSummary, error) {
	total := len(pages)
	if prev != nil {
		total = len(prev.FailedPages)
	}

	runID := uuid.Nil
	if env.database != nil {
		id, err := env.database.CreateRun(ctx, env.cfg.Project, stage, total)
		if err != nil {
			return nil, err
		}
		runID = id
	}

	st := env.storeFor(runID)
	stages, err := env.stages(st)
	if err != nil {
		return nil, err
	}

	env.logger.Info("stage started", "stage", stage, "pages", total, "concurrency", env.cfg.MaxConcurrency)
	var summary *pipeline.RunSummary
	if prev != nil {
		summary = env.runner().Retry(ctx, prev, build(stages))
	} else {
		summary = env.runner().Run(ctx, stage, pages, build(stages))
	}
	env.logger.Info("stage finished", "stage", stage,
		"success", summary.Success, "partial_failure", summary.PartialFailure, "failed", summary.Failed,
		"elapsed", summary.Elapsed)

	if err := st.SaveSummary(ctx, stage, summary); err != nil {
		return summary, fmt.Errorf("failed to save %s summary: %w", stage, err)
	}
	if env.database != nil {
		if err := env.database.CompleteRun(ctx, runID, db.RunCounts{
			Total:          summary.Total,
			Success:        summary.Success,
			PartialFailure: summary.PartialFailure,
			Failed:         summary.Failed,
			FailedPages:    summary.FailedPages,
		}); err != nil {
			env.logger.Warn("failed to record run completion", "run_id", runID, "error", err)
		}
	}

	env.printer.PrintRunSummary(summary.View())
	env.printer.PrintFailures(summary.FailureLines())
	return summary, nil
}

func writeOut(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
