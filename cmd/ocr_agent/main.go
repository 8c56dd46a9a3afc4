// Package main implements the ocr_agent CLI: page OCR, QA review, correction
// and HTML viewers over a scanned book.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ocr_agent",
	Short: "Batch OCR with model review and correction",
	Long: `ocr_agent transcribes scanned book pages into structured JSON with a vision model,
asks a second pass to review each page, applies the reviewer's corrections, and renders
HTML viewers for checking the results.

Every stage works page by page with a bounded worker pool. A page that fails never
stops the others; the run summary lists it and 'retry' revisits only those pages.`,
	SilenceUsage: true,
}

var (
	flagConfig      string
	flagOut         string
	flagProject     string
	flagPages       int
	flagConcurrency int
	flagDebug       bool
	flagMetricsAddr string
	flagDatabaseURL string
	flagRedisURL    string

	flagPDF       string
	flagImagesDir string
	flagProvider  string
	flagModel     string
	flagAPIKey    string
	flagDPI       int
	flagOffset    int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to config file, JSON or YAML (values can be overridden by other flags)")
	pf.StringVarP(&flagOut, "out", "o", "", "Output directory for stage records (default \"output\")")
	pf.StringVar(&flagProject, "project", "", "Project name used to key database records")
	pf.IntVarP(&flagPages, "pages", "n", 0, "Number of pages to process, starting at page 1")
	pf.IntVarP(&flagConcurrency, "concurrency", "c", 0, "Maximum pages processed concurrently")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	pf.StringVar(&flagRedisURL, "redis-url", "", "Redis URL for the model response cache (optional, defaults to REDIS_URL env var)")

	pf.StringVar(&flagPDF, "pdf", "", "Scanned book PDF (mutually exclusive with --images-dir)")
	pf.StringVar(&flagImagesDir, "images-dir", "", "Directory of pre-rendered page_NNN.png images")
	pf.StringVar(&flagProvider, "provider", "", "Model provider: gemini or openrouter")
	pf.StringVar(&flagModel, "model", "", "Model name overriding the provider default")
	pf.StringVar(&flagAPIKey, "api-key", "", "Provider API key (optional, defaults to GEMINI_API_KEY or OPENROUTER_API_KEY)")
	pf.IntVar(&flagDPI, "dpi", 0, "PDF render resolution")
	pf.IntVar(&flagOffset, "book-page-offset", 0, "Printed page number minus PDF page number")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
