package llm

import (
	"context"
	"fmt"
)

// Image is an inline image sent with a request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one model call.
type Request struct {
	Tier   ModelTier
	System string
	Prompt string
	Images []Image

	// Zero values leave the provider default in place.
	MaxTokens       int
	Temperature     *float32
	ReasoningBudget int
}

// Usage reports token counts for a call.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// RawResponse is the unparsed model output for one call.
type RawResponse struct {
	Text         string `json:"text"`
	Reasoning    string `json:"reasoning,omitempty"`
	Usage        Usage  `json:"usage"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Attempts     int    `json:"attempts"`
	Cached       bool   `json:"cached,omitempty"`
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate runs one request, retrying transient failures internally
	Generate(ctx context.Context, req *Request) (*RawResponse, error)
	// GetModel returns the provider model name for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenRouter:
		return NewOpenRouterClient(config, apiKey, nil)
	default:
		return nil, fmt.Errorf("unsupported provider %q", config.Provider)
	}
}
