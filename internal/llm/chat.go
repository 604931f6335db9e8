package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxChatResponseBytes = 4 << 20

// ChatConfig configures an OpenAI-compatible chat completions endpoint.
type ChatConfig struct {
	Name        string
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	RequireKey  bool
	HTTPClient  *http.Client
}

// ChatClient speaks the OpenAI chat completions protocol. It serves both
// Pollinations, where the key is optional, and OpenAI.
type ChatClient struct {
	name        string
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatClient creates a chat completions client
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: endpoint is required", cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", cfg.Name)
	}
	if cfg.RequireKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrMissingKey)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := DefaultTimeout
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &ChatClient{
		name:        cfg.Name,
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
	}, nil
}

// Name returns the provider label used in logs and outcomes.
func (c *ChatClient) Name() string { return c.name }

// Model returns the configured model name.
func (c *ChatClient) Model() string { return c.model }

// Complete sends one request and returns choices[0].message.content.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChatResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("%s error: %s", c.name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", c.name)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s: %w", c.name, ErrEmptyResponse)
	}
	return content, nil
}
