package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
	logger *slog.Logger

	reasoningOnce sync.Once
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
		logger: slog.Default(),
	}, nil
}

// Generate sends the prompt and images to the tier's model. The SDK has no
// reasoning budget setting, so ReasoningBudget is ignored.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*RawResponse, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", req.Tier)
	}
	c.noteIgnoredReasoning(req, modelName)

	model := c.client.GenerativeModel(modelName)
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	parts := make([]genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))

	return callWithRetry(ctx, c.config, func(ctx context.Context) (*RawResponse, error) {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, fmt.Errorf("failed to generate content: %w", err)
		}
		return responseFromGemini(resp, modelName)
	})
}

// noteIgnoredReasoning logs once per client when a reasoning budget is requested.
func (c *GeminiClient) noteIgnoredReasoning(req *Request, model string) {
	if req.ReasoningBudget <= 0 {
		return
	}
	c.reasoningOnce.Do(func() {
		logger := c.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("reasoning budget not supported by gemini provider, ignoring",
			"model", model, "reasoning_budget", req.ReasoningBudget)
	})
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// responseFromGemini extracts text and usage from a Gemini API response
func responseFromGemini(resp *genai.GenerateContentResponse, modelName string) (*RawResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, &Error{Message: fmt.Sprintf("no content in response (finish reason %s)", candidate.FinishReason)}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	out := &RawResponse{
		Text:         strings.Join(parts, ""),
		Model:        modelName,
		FinishReason: candidate.FinishReason.String(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens: int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
