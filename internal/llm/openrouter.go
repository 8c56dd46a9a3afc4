package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept in the error text.
const maxErrorBody = 512

// OpenRouterClient implements Client for the OpenRouter chat completions API
type OpenRouterClient struct {
	apiKey     string
	config     *Config
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type reasoningOptions struct {
	MaxTokens int `json:"max_tokens"`
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []chatMessage     `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature *float32          `json:"temperature,omitempty"`
	Reasoning   *reasoningOptions `json:"reasoning,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			Reasoning string          `json:"reasoning"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenRouterClient creates a new OpenRouter client. A nil httpClient uses
// a default client; per-attempt deadlines come from the request context.
func NewOpenRouterClient(config *Config, apiKey string, httpClient *http.Client) (*OpenRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultOpenRouterConfig()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenRouterClient{apiKey: apiKey, config: config, httpClient: httpClient}, nil
}

// Generate sends one chat completion request with the images inlined as data URLs.
func (c *OpenRouterClient) Generate(ctx context.Context, req *Request) (*RawResponse, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	body, err := json.Marshal(c.buildRequest(modelName, req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return callWithRetry(ctx, c.config, func(ctx context.Context) (*RawResponse, error) {
		return c.post(ctx, body, modelName)
	})
}

func (c *OpenRouterClient) buildRequest(modelName string, req *Request) *chatRequest {
	parts := make([]contentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	parts = append(parts, contentPart{Type: "text", Text: req.Prompt})

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: parts})

	out := &chatRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.ReasoningBudget > 0 {
		out.Reasoning = &reasoningOptions{MaxTokens: req.ReasoningBudget}
	}
	return out
}

func (c *OpenRouterClient) post(ctx context.Context, body []byte, modelName string) (*RawResponse, error) {
	url := c.config.BaseURL
	if url == "" {
		url = DefaultOpenRouterURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.config.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.config.Referer)
	}
	if c.config.Title != "" {
		httpReq.Header.Set("X-Title", c.config.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Message:    fmt.Sprintf("API returned %q", truncate(string(data), maxErrorBody)),
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &Error{Message: "failed to decode response", Cause: err}
	}
	if parsed.Error != nil {
		return nil, &Error{Message: parsed.Error.Message, Retryable: true}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Message: "no choices in response"}
	}

	choice := parsed.Choices[0]
	text, reasoning := messageText(choice.Message.Content)
	if choice.Message.Reasoning != "" {
		reasoning = choice.Message.Reasoning
	}

	if parsed.Model != "" {
		modelName = parsed.Model
	}
	return &RawResponse{
		Text:         text,
		Reasoning:    reasoning,
		Model:        modelName,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens: parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}, nil
}

// messageText flattens message content, which is either a string or a list
// of typed blocks. Thinking blocks are returned separately.
func messageText(raw json.RawMessage) (text, reasoning string) {
	if len(raw) == 0 {
		return "", ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ""
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", ""
	}

	var sb, rb strings.Builder
	for _, b := range blocks {
		var str string
		if err := json.Unmarshal(b, &str); err == nil {
			sb.WriteString(str)
			continue
		}
		var block struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Thinking string `json:"thinking"`
		}
		if err := json.Unmarshal(b, &block); err != nil {
			continue
		}
		switch block.Type {
		case "text":
			sb.WriteString(block.Text)
		case "thinking":
			rb.WriteString(block.Thinking)
		}
	}
	return sb.String(), rb.String()
}

// GetModel returns the model name for a tier
func (c *OpenRouterClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *OpenRouterClient) Close() error {
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
