// Package summarizer asks a chat-completions model to review cost data.
//
// FILES:
//   - client.go:  API client and HTTP helpers
//   - tokens.go:  Prompt token counting (tiktoken with a length fallback)
//   - prompt.go:  Cost governance prompt and row trimming
package summarizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/cost-insights/internal/utils"
)

// DefaultSystemPrompt frames every request.
const DefaultSystemPrompt = "You are a concise, trusted cloud governance assistant."

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("summarizer not configured")

// ErrUpstream wraps failures reported by the model endpoint.
var ErrUpstream = errors.New("summarizer upstream error")

// maxErrorBody limits how much of an error response is logged.
const maxErrorBody = 500

// =============================================================================
// Client
// =============================================================================

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = timeout
	}
}

// NewClient creates a summarizer client.
func NewClient(endpoint, model, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasAPIKey returns true if an API key is configured.
func (c *Client) HasAPIKey() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends one system+user exchange and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !c.HasAPIKey() {
		return "", ErrNotConfigured
	}

	body, err := c.buildRequest(system, prompt)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		log.Warn().
			Int("status", resp.StatusCode).
			Str("api_key", utils.MaskKeyShort(c.apiKey)).
			Str("body", snippet).
			Msg("summarizer request rejected")
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	content := gjson.GetBytes(data, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return "", fmt.Errorf("%w: response has no message content", ErrUpstream)
	}

	log.Debug().
		Str("model", c.model).
		Dur("latency", time.Since(started)).
		Int64("completion_tokens", gjson.GetBytes(data, "usage.completion_tokens").Int()).
		Msg("summarizer call complete")

	return content.String(), nil
}

func (c *Client) buildRequest(system, prompt string) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", c.model); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages.0.role", "system"); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages.0.content", system); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages.1.role", "user"); err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "messages.1.content", prompt)
}
