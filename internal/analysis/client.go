package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "google/gemini-2.0-flash-001"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
)

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the chat client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs a chat API client. Returns nil without an API key so
// callers fall back to heuristic analysis.
func NewClient(apiKey string, opts ...Option) *Client {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// APIError carries the HTTP status for failure classification upstream.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: http %d: %s", e.StatusCode, e.Message)
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the assistant content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("chat complete: prompt required")
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat complete: build url: %w", err)
	}
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		ResponseFormat: map[string]string{
			"type": jsonResponseType,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat complete: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat complete: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat complete: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat complete: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("chat complete: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat complete: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat complete: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat complete: empty content")
	}
	return content, nil
}

// extractJSON pulls the outermost JSON object out of model output that may be
// wrapped in prose or markdown fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
