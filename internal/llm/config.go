// Package llm provides the model-call collaborator: provider configuration,
// a Client abstraction with retries, and the Gemini and OpenRouter providers.
package llm

import "time"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap checks and smoke tests
	TierLite ModelTier = "lite"
	// TierStandard is for structured extraction of simple pages
	TierStandard ModelTier = "standard"
	// TierAdvanced is for page OCR and review
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini calls Google Gemini through the genai SDK
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter calls the OpenRouter chat completions API
	ProviderOpenRouter Provider = "openrouter"
)

// Defaults for model calls.
const (
	DefaultRetryBound     = 3
	DefaultAttemptTimeout = 240 * time.Second
	DefaultBackoffBase    = 5 * time.Second
	DefaultBackoffMax     = time.Minute

	DefaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string

	// RetryBound is the maximum number of attempts per call, including the first.
	RetryBound int
	// AttemptTimeout bounds each attempt, independently of the caller's context.
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration

	// BaseURL, Referer and Title are only used by OpenRouter.
	BaseURL string
	Referer string
	Title   string
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		RetryBound:     DefaultRetryBound,
		AttemptTimeout: DefaultAttemptTimeout,
		BackoffBase:    DefaultBackoffBase,
		BackoffMax:     DefaultBackoffMax,
	}
}

// DefaultOpenRouterConfig returns the default OpenRouter configuration
func DefaultOpenRouterConfig() *Config {
	return &Config{
		Provider: ProviderOpenRouter,
		Models: map[ModelTier]string{
			TierLite:     "google/gemini-2.5-flash-lite",
			TierStandard: "google/gemini-2.5-flash",
			TierAdvanced: "google/gemini-3-pro-preview",
		},
		RetryBound:     DefaultRetryBound,
		AttemptTimeout: DefaultAttemptTimeout,
		BackoffBase:    DefaultBackoffBase,
		BackoffMax:     DefaultBackoffMax,
		BaseURL:        DefaultOpenRouterURL,
		Referer:        "https://ocr-review.local",
		Title:          "OCR Review",
	}
}

// ConfigFor returns the default configuration for a provider name.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderOpenRouter {
		return DefaultOpenRouterConfig()
	}
	return DefaultGeminiConfig()
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// attempts returns RetryBound, falling back to the default when unset.
func (c *Config) attempts() int {
	if c.RetryBound <= 0 {
		return DefaultRetryBound
	}
	return c.RetryBound
}
