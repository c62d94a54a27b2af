// Package arcade is a minimal client for the Arcade tool-execution API, the
// posting backend for both social platforms.
package arcade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Arcade API.
const defaultBaseURL = "https://api.arcade.dev/v1"

// Client defines the Arcade API operations used by the publisher.
type Client interface {
	ExecuteTool(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
	AuthStatus(ctx context.Context, provider string) (*AuthStatusResponse, error)
}

// ExecuteRequest is the body for POST /tools/execute.
type ExecuteRequest struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	UserID   string         `json:"user_id"`
}

// ExecuteResponse is the response from POST /tools/execute.
type ExecuteResponse struct {
	Success bool          `json:"success"`
	Output  *ToolOutput   `json:"output,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// ToolOutput carries the opaque tool result payload.
type ToolOutput struct {
	Value json.RawMessage `json:"value,omitempty"`
}

// ErrorPayload mirrors the API's error envelope.
type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// ErrorMessage returns the error text of a failed execution, or "".
func (r *ExecuteResponse) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// AuthStatusResponse is the response from POST /auth/start.
type AuthStatusResponse struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// Authorized reports whether the provider connection is ready for posting.
func (r *AuthStatusResponse) Authorized() bool {
	return r.Status == "completed"
}

// httpClient implements Client against the Arcade HTTP API.
type httpClient struct {
	apiKey  string
	userID  string
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates an Arcade API client. userID identifies the connected
// social account on whose behalf tools execute.
func NewClient(apiKey, userID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		userID:  userID,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ExecuteTool(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	if req.UserID == "" {
		req.UserID = c.userID
	}

	var resp ExecuteResponse
	if err := c.post(ctx, "/tools/execute", req, &resp); err != nil {
		return nil, eris.Wrapf(err, "arcade: execute %s", req.ToolName)
	}
	return &resp, nil
}

func (c *httpClient) AuthStatus(ctx context.Context, provider string) (*AuthStatusResponse, error) {
	body := map[string]string{
		"user_id":  c.userID,
		"provider": provider,
	}

	var resp AuthStatusResponse
	if err := c.post(ctx, "/auth/start", body, &resp); err != nil {
		return nil, eris.Wrapf(err, "arcade: auth status %s", provider)
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.New(fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
