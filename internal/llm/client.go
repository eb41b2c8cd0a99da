// Package llm provides a minimal client for OpenAI-compatible chat and
// embedding APIs. It is used for query understanding and the LLM and
// embedding-based ranking strategies; the engine degrades to heuristic
// ranking when no client is configured.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default values for the client.
const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxTokens      = 1024
	defaultRetryDelay     = 2 * time.Second
)

// Recorder observes finished API calls. A nil recorder disables recording.
type Recorder interface {
	RecordLLMRequest(operation, model string, durationSeconds float64)
	RecordLLMRequestFailed(operation, model, errorType string)
}

// Config holds the parameters needed to create a client.
type Config struct {
	// APIKey is the API key.
	APIKey string
	// BaseURL is the API base URL (empty means OpenAI's).
	BaseURL string
	// ChatModel is the chat completion model identifier.
	ChatModel string
	// EmbeddingModel is the embedding model identifier.
	EmbeddingModel string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is how many times transient errors are retried.
	MaxRetries int
	// Recorder optionally observes request outcomes.
	Recorder Recorder
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	httpClient     *http.Client
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	recorder       Recorder
}

// New creates a new client with the given configuration.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     defaultRetryDelay,
		recorder:       cfg.Recorder,
	}
}

// Model returns the chat model identifier being used.
func (c *Client) Model() string {
	return c.chatModel
}

// chatRequest represents the Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// usage contains token usage information.
type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// embeddingRequest represents the Embeddings API request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse represents the Embeddings API response body.
type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage usage           `json:"usage"`
}

// embeddingData is one embedding vector in the response.
type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

// apiErrorDetail contains error details from the API.
type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// CompleteJSON sends a chat completion request with JSON response format
// and returns the raw JSON content of the first choice. Transient errors
// (5xx, 429, network) are retried up to MaxRetries times.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	chatReq := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	start := time.Now()
	var content string
	err := c.withRetry(ctx, func() error {
		var err error
		content, err = c.doChat(ctx, chatReq)
		return err
	})
	c.observe("chat_completion", c.chatModel, start, err)
	return content, err
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embReq := embeddingRequest{
		Model: c.embeddingModel,
		Input: texts,
	}

	start := time.Now()
	var vectors [][]float32
	err := c.withRetry(ctx, func() error {
		var err error
		vectors, err = c.doEmbed(ctx, embReq)
		return err
	})
	c.observe("embeddings", c.embeddingModel, start, err)
	return vectors, err
}

// observe reports one call's outcome to the recorder, if any.
func (c *Client) observe(operation, model string, start time.Time, err error) {
	if c.recorder == nil {
		return
	}
	if err != nil {
		c.recorder.RecordLLMRequestFailed(operation, model, errorType(err))
		return
	}
	c.recorder.RecordLLMRequest(operation, model, time.Since(start).Seconds())
}

// errorType classifies an error into a low-cardinality metric label.
func errorType(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type != "" {
			return apiErr.Type
		}
		if apiErr.StatusCode == 0 {
			return "network"
		}
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	}
	return "other"
}

// withRetry runs fn, retrying transient errors with linear backoff.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("llm: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("llm: exhausted %d retries: %w", c.maxRetries, lastErr)
}

// doChat performs a single Chat Completions request.
func (c *Client) doChat(ctx context.Context, chatReq chatRequest) (string, error) {
	respBody, err := c.post(ctx, "/chat/completions", chatReq)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("llm: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("llm: empty choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// doEmbed performs a single Embeddings request.
func (c *Client) doEmbed(ctx context.Context, embReq embeddingRequest) ([][]float32, error) {
	respBody, err := c.post(ctx, "/embeddings", embReq)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("llm: failed to unmarshal response: %w", err)
	}

	if len(embResp.Data) != len(embReq.Input) {
		return nil, fmt.Errorf("llm: got %d embeddings for %d inputs", len(embResp.Data), len(embReq.Input))
	}

	vectors := make([][]float32, len(embResp.Data))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("llm: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// post sends a JSON POST and returns the response body, mapping non-200
// statuses to APIError.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Provider: "openai", StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseAPIError parses an API error from the response status code and body.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp apiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
