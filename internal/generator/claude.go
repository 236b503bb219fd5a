package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdulachik/socialpilot/internal/metrics"
)

const (
	claudeAPIURL     = "https://api.anthropic.com"
	claudeAPIVersion = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	maxTokens        = 1024
)

// ClaudeClient is a client for the Claude Messages API.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// ClaudeConfig holds configuration for the Claude client.
type ClaudeConfig struct {
	APIKey  string
	Model   string
	BaseURL string // defaults to the public API
	Timeout time.Duration
}

// NewClaudeClient creates a new Claude API client.
func NewClaudeClient(config ClaudeConfig) *ClaudeClient {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = claudeAPIURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ClaudeClient{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		model: model,
	}
}

// Model returns the model used for completions.
func (c *ClaudeClient) Model() string {
	return c.model
}

// Message represents a message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the text of a response plus its token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

type claudeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to Claude.
func (c *ClaudeClient) Complete(ctx context.Context, system, user string) (*Completion, error) {
	start := time.Now()

	req := claudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []Message{
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("anthropic", "messages", start, 0, err)
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveNetworkRequest("anthropic", "messages", start, resp.StatusCode, nil)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if claudeResp.Error != nil {
		return nil, fmt.Errorf("API error: %s - %s", claudeResp.Error.Type, claudeResp.Error.Message)
	}

	if len(claudeResp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	model := claudeResp.Model
	if model == "" {
		model = c.model
	}
	metrics.ObserveLLMGeneration(model, time.Since(start), claudeResp.Usage.InputTokens, claudeResp.Usage.OutputTokens)

	return &Completion{
		Text:         claudeResp.Content[0].Text,
		Model:        model,
		InputTokens:  claudeResp.Usage.InputTokens,
		OutputTokens: claudeResp.Usage.OutputTokens,
	}, nil
}
