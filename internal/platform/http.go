package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abdulachik/socialpilot/internal/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 4 << 20
	maxErrorMessage = 512
)

// apiClient is the transport shared by all adapters. It bounds every call
// with the client timeout and records a metric per request.
type apiClient struct {
	platform   Platform
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(p Platform, defaultBaseURL string, opts Options) apiClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return apiClient{
		platform:   p,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// apiResponse is a fully read vendor response.
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *apiResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// decode unmarshals the body into out.
func (r *apiResponse) decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// message extracts a human-readable error from the body.
func (r *apiResponse) message() string {
	return vendorMessage(r.StatusCode, r.Body)
}

type apiRequest struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	bearer      string
	basicUser   string
	basicPass   string
}

// do sends one request. A non-nil error means no response was obtained;
// non-2xx statuses are returned as a response for the caller to interpret.
func (c *apiClient) do(ctx context.Context, r apiRequest) (*apiResponse, error) {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case r.bearer != "":
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	case r.basicUser != "":
		req.SetBasicAuth(r.basicUser, r.basicPass)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest(string(c.platform), r.operation, start, 0, err)
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	metrics.ObserveNetworkRequest(string(c.platform), r.operation, start, resp.StatusCode, err)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	slog.Debug("vendor request",
		"platform", c.platform,
		"operation", r.operation,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return &apiResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *apiClient) get(ctx context.Context, operation, path string, query url.Values, bearer string) (*apiResponse, error) {
	return c.do(ctx, apiRequest{
		operation: operation,
		method:    http.MethodGet,
		path:      path,
		query:     query,
		bearer:    bearer,
	})
}

func (c *apiClient) postJSON(ctx context.Context, operation, path string, payload any, bearer string) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, apiRequest{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(body),
		contentType: "application/json",
		bearer:      bearer,
	})
}

func (c *apiClient) postForm(ctx context.Context, operation, path string, form url.Values, bearer string) (*apiResponse, error) {
	return c.do(ctx, apiRequest{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		bearer:      bearer,
	})
}

// vendorMessage pulls the error text out of the common vendor error shapes:
// Graph API {"error":{"message"}}, LinkedIn/Bluesky {"message"} and
// X {"detail"} or {"title"}.
func vendorMessage(status int, body []byte) string {
	var shape struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
		Title   string          `json:"title"`
	}
	if err := json.Unmarshal(body, &shape); err == nil {
		if len(shape.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(shape.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		switch {
		case shape.Message != "":
			return shape.Message
		case shape.Detail != "":
			return shape.Detail
		case shape.Title != "":
			return shape.Title
		}
		var plain string
		if len(shape.Error) > 0 && json.Unmarshal(shape.Error, &plain) == nil && plain != "" {
			return plain
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > maxErrorMessage {
		text = text[:maxErrorMessage]
	}
	return text
}
