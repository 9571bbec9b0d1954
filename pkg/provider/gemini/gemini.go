// Package gemini is the adapter for the Google Gemini generateContent API.
package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/provider"
)

// DefaultBaseURL is the public Generative Language endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Config holds configuration for the Gemini adapter.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Headers map[string]string
}

// Client implements provider.Adapter for generateContent.
type Client struct {
	*provider.HTTPClient
}

var _ provider.Adapter = (*Client)(nil)

// New creates a Client. An empty Name defaults to "gemini" and an empty
// BaseURL to the public endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini %s: APIKey is required", cfg.Name)
	}

	headers := map[string]string{"x-goog-api-key": cfg.APIKey}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Client{HTTPClient: provider.NewHTTPClient(cfg.Name, cfg.BaseURL, cfg.Timeout, headers)}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// Invoke sends the prompt as one user turn and concatenates the text parts
// of the first candidate.
func (c *Client) Invoke(ctx context.Context, inv *provider.Invocation) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: inv.Prompt}}}},
	}

	path := "/v1beta/models/" + url.PathEscape(inv.ModelID) + ":generateContent"
	var resp generateResponse
	if err := c.PostJSON(ctx, path, req, &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", provider.Rejected(c.Name(), 0, "prompt blocked: "+resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", provider.EmptyResponse(c.Name())
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		if reason := resp.Candidates[0].FinishReason; reason == "SAFETY" || reason == "RECITATION" {
			return "", provider.Rejected(c.Name(), 0, "response blocked: "+reason)
		}
		return "", provider.EmptyResponse(c.Name())
	}
	return text, nil
}
