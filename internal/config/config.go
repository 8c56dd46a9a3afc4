// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults for the options the CLI needs a value for.
const (
	DefaultWorkItemCount  = 84
	DefaultMaxConcurrency = 16
	DefaultRetryBound     = 3
	DefaultAttemptTimeout = 240
	DefaultDPI            = 250
	DefaultBookPageOffset = 36
	DefaultOutputDir      = "output"
	DefaultProject        = "default"
	DefaultLogLevel       = "info"
	DefaultProvider       = "gemini"
)

// Config represents the CLI configuration that can be loaded from a JSON or
// YAML file. All fields are optional; missing values use defaults or must be
// provided via CLI flags. ${VAR} references are expanded from the environment.
type Config struct {
	// Inputs
	PDF            string `json:"pdf,omitempty" yaml:"pdf,omitempty"`                           // Scanned book PDF
	ImagesDir      string `json:"images_dir,omitempty" yaml:"images_dir,omitempty"`             // Pre-rendered page_NNN.png directory
	RenderCacheDir string `json:"render_cache_dir,omitempty" yaml:"render_cache_dir,omitempty"` // Where rendered PDF pages are kept
	OCRPrompt      string `json:"ocr_prompt,omitempty" yaml:"ocr_prompt,omitempty"`             // Replacement OCR instructions file
	PageSchema     string `json:"page_schema,omitempty" yaml:"page_schema,omitempty"`           // JSON Schema for OCR documents
	QASchema       string `json:"qa_schema,omitempty" yaml:"qa_schema,omitempty"`               // JSON Schema for review reports

	// Outputs
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Project   string `json:"project,omitempty" yaml:"project,omitempty"`

	// Work set
	WorkItemCount  int `json:"work_item_count,omitempty" yaml:"work_item_count,omitempty" validate:"gte=0"`
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty" validate:"gte=0,lte=256"`
	RetryBound     int `json:"retry_bound,omitempty" yaml:"retry_bound,omitempty" validate:"gte=0,lte=20"`
	BookPageOffset *int `json:"book_page_offset,omitempty" yaml:"book_page_offset,omitempty"`

	// Model
	Provider        string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=gemini openrouter"`
	Model           string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey          string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	AttemptTimeout  int    `json:"attempt_timeout_seconds,omitempty" yaml:"attempt_timeout_seconds,omitempty" validate:"gte=0"`
	MaxTokens       int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	ReasoningBudget int    `json:"reasoning_budget,omitempty" yaml:"reasoning_budget,omitempty" validate:"gte=0"`

	// Rasterizer
	DPI      int `json:"dpi,omitempty" yaml:"dpi,omitempty" validate:"omitempty,gte=36,lte=1200"`
	MaxWidth int `json:"max_width,omitempty" yaml:"max_width,omitempty" validate:"gte=0"`

	// Storage
	DatabaseURL   string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL      string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`       // Response cache
	CacheTTLHours int    `json:"cache_ttl_hours,omitempty" yaml:"cache_ttl_hours,omitempty" validate:"gte=0"`

	// Observability
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	offset := DefaultBookPageOffset
	return Config{
		OutputDir:      DefaultOutputDir,
		Project:        DefaultProject,
		WorkItemCount:  DefaultWorkItemCount,
		MaxConcurrency: DefaultMaxConcurrency,
		RetryBound:     DefaultRetryBound,
		BookPageOffset: &offset,
		Provider:       DefaultProvider,
		AttemptTimeout: DefaultAttemptTimeout,
		DPI:            DefaultDPI,
		LogLevel:       DefaultLogLevel,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// Validate mutually exclusive fields
	if c.PDF != "" && c.ImagesDir != "" {
		return fmt.Errorf("config error: 'pdf' and 'images_dir' are mutually exclusive")
	}

	// Validate file paths exist (if specified)
	for name, path := range map[string]string{
		"pdf":         c.PDF,
		"ocr_prompt":  c.OCRPrompt,
		"page_schema": c.PageSchema,
		"qa_schema":   c.QASchema,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("config error: %s file not found: %s", name, path)
		}
	}

	if c.ImagesDir != "" {
		if info, err := os.Stat(c.ImagesDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: images directory not found: %s", c.ImagesDir)
		}
	}

	return nil
}

// AttemptTimeoutDuration returns the per-attempt model deadline.
func (c *Config) AttemptTimeoutDuration() time.Duration {
	return time.Duration(c.AttemptTimeout) * time.Second
}

// CacheTTL returns the response cache lifetime, zero for the cache default.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// Offset returns the book page offset, or the default when unset.
func (c *Config) Offset() int {
	if c.BookPageOffset == nil {
		return DefaultBookPageOffset
	}
	return *c.BookPageOffset
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	mergeString(&result.PDF, defaults.PDF)
	mergeString(&result.ImagesDir, defaults.ImagesDir)
	mergeString(&result.RenderCacheDir, defaults.RenderCacheDir)
	mergeString(&result.OCRPrompt, defaults.OCRPrompt)
	mergeString(&result.PageSchema, defaults.PageSchema)
	mergeString(&result.QASchema, defaults.QASchema)
	mergeString(&result.OutputDir, defaults.OutputDir)
	mergeString(&result.Project, defaults.Project)
	mergeString(&result.Provider, defaults.Provider)
	mergeString(&result.Model, defaults.Model)
	mergeString(&result.APIKey, defaults.APIKey)
	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.RedisURL, defaults.RedisURL)
	mergeString(&result.MetricsAddr, defaults.MetricsAddr)
	mergeString(&result.LogLevel, defaults.LogLevel)

	// Int fields: use default if zero
	mergeInt(&result.WorkItemCount, defaults.WorkItemCount)
	mergeInt(&result.MaxConcurrency, defaults.MaxConcurrency)
	mergeInt(&result.RetryBound, defaults.RetryBound)
	mergeInt(&result.AttemptTimeout, defaults.AttemptTimeout)
	mergeInt(&result.MaxTokens, defaults.MaxTokens)
	mergeInt(&result.ReasoningBudget, defaults.ReasoningBudget)
	mergeInt(&result.DPI, defaults.DPI)
	mergeInt(&result.MaxWidth, defaults.MaxWidth)
	mergeInt(&result.CacheTTLHours, defaults.CacheTTLHours)

	if result.BookPageOffset == nil && defaults.BookPageOffset != nil {
		offset := *defaults.BookPageOffset
		result.BookPageOffset = &offset
	}

	return result
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
