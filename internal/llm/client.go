// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/attendhq/attend/internal/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelError wraps failures of the model backend: transport errors,
// non-2xx responses, and malformed payloads.
type ModelError struct {
	StatusCode int
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model error [%d]: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model error: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Completer is the surface the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
}

// Client calls the chat completions API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a model client from config.
func NewClient(log *slog.Logger, cfg config.LLMConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultTimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log.With(slog.String("service", "llm")),
	}
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the conversation and returns the assistant reply text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, nil)
}

// CompleteJSON is Complete with the response constrained to a JSON object.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, map[string]any{"type": "json_object"})
}

func (c *Client) complete(ctx context.Context, messages []Message, responseFormat map[string]any) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return "", &ModelError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &ModelError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ModelError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ModelError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return "", &ModelError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)}
		}
		return "", &ModelError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(respBody)))}
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &ModelError{Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &ModelError{Err: fmt.Errorf("empty choices")}
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
