// Package anthropic is the adapter for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/provider"
)

const (
	// DefaultBaseURL is the public Anthropic endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent in the anthropic-version header.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is used when Config.MaxTokens is zero. The Messages
	// API requires the field.
	DefaultMaxTokens = 1024
)

// Config holds configuration for the Anthropic adapter.
type Config struct {
	Name      string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Headers   map[string]string
	MaxTokens int
}

// Client implements provider.Adapter for the Messages API.
type Client struct {
	*provider.HTTPClient
	maxTokens int
}

var _ provider.Adapter = (*Client)(nil)

// New creates a Client. An empty Name defaults to "anthropic" and an empty
// BaseURL to the public endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic %s: APIKey is required", cfg.Name)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": APIVersion,
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		HTTPClient: provider.NewHTTPClient(cfg.Name, cfg.BaseURL, cfg.Timeout, headers),
		maxTokens:  cfg.MaxTokens,
	}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Invoke sends the prompt as a single user message and concatenates the
// text blocks of the answer.
func (c *Client) Invoke(ctx context.Context, inv *provider.Invocation) (string, error) {
	req := messagesRequest{
		Model:     inv.ModelID,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: inv.Prompt}},
	}

	var resp messagesResponse
	if err := c.PostJSON(ctx, "/v1/messages", req, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		if resp.StopReason == "refusal" {
			return "", provider.Rejected(c.Name(), 0, "model refused to answer")
		}
		return "", provider.EmptyResponse(c.Name())
	}
	return text, nil
}
