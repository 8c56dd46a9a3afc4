package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ocr-review/internal/config"
)

func parseStatusFlags(t *testing.T, args ...string) {
	t.Helper()
	resetFlags(rootCmd)
	require.NoError(t, statusCmd.ParseFlags(args))
}

func TestLoadSettings_Defaults(t *testing.T) {
	isolate(t)
	parseStatusFlags(t)

	cfg, err := loadSettings(statusCmd)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultWorkItemCount, cfg.WorkItemCount)
	assert.Equal(t, config.DefaultMaxConcurrency, cfg.MaxConcurrency)
	assert.Equal(t, config.DefaultRetryBound, cfg.RetryBound)
	assert.Equal(t, config.DefaultBookPageOffset, cfg.Offset())
	assert.Equal(t, config.DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadSettings_FlagsOverrideFile(t *testing.T) {
	isolate(t)
	t.Setenv("TEST_OCR_OUT", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: ${TEST_OCR_OUT}
work_item_count: 10
max_concurrency: 4
book_page_offset: 0
provider: openrouter
`), 0644))

	parseStatusFlags(t, "--config", path, "--pages", "5", "--debug")

	cfg, err := loadSettings(statusCmd)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.Equal(t, 5, cfg.WorkItemCount)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 0, cfg.Offset())
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadSettings_APIKeyFromProviderEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	parseStatusFlags(t, "--provider", "openrouter")
	cfg, err := loadSettings(statusCmd)
	require.NoError(t, err)
	assert.Equal(t, "or-key", cfg.APIKey)

	parseStatusFlags(t)
	cfg, err = loadSettings(statusCmd)
	require.NoError(t, err)
	assert.Equal(t, "gem-key", cfg.APIKey)
}

func TestLoadSettings_ImagesFlagReplacesConfiguredPDF(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	pdf := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0644))
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pdf": "`+pdf+`"}`), 0644))

	parseStatusFlags(t, "--config", path, "--images-dir", dir)
	cfg, err := loadSettings(statusCmd)
	require.NoError(t, err)
	assert.Empty(t, cfg.PDF)
	assert.Equal(t, dir, cfg.ImagesDir)
}

func TestLoadSettings_Invalid(t *testing.T) {
	isolate(t)

	parseStatusFlags(t, "--provider", "bard")
	_, err := loadSettings(statusCmd)
	assert.Error(t, err)

	parseStatusFlags(t, "--images-dir", filepath.Join(t.TempDir(), "missing"))
	_, err = loadSettings(statusCmd)
	assert.Error(t, err)
}

func TestCountIn(t *testing.T) {
	assert.Equal(t, 2, countIn([]int{1, 3, 9}, []int{1, 2, 3}))
	assert.Equal(t, 0, countIn(nil, []int{1}))
	assert.Equal(t, "none", joinOrNone(nil))
	assert.Equal(t, "a, b", joinOrNone([]string{"a", "b"}))
}
