package openaicompat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/provider"
)

// Config holds configuration for a Chat Completions backend.
type Config struct {
	// Name is the provider identifier the catalog refers to (e.g., "openai").
	Name string

	// BaseURL is the backend root, without the /v1 suffix.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout caps a call when the context has no earlier deadline.
	Timeout time.Duration

	// Headers are added to every request (e.g., OpenRouter's HTTP-Referer
	// and X-Title).
	Headers map[string]string

	// ModelMapping rewrites catalog ids to backend model names. Ids not in
	// the map are sent unchanged.
	ModelMapping map[string]string

	// MaxTokens caps the answer length when positive.
	MaxTokens int
}

// Client implements provider.Adapter for Chat Completions backends.
type Client struct {
	*provider.HTTPClient

	maxTokens int

	// ModelMapper transforms the model name before it is sent. Nil sends
	// the id as-is.
	ModelMapper func(string) string
}

var (
	_ provider.Adapter     = (*Client)(nil)
	_ provider.ModelLister = (*Client)(nil)
)

// New creates a Client. Name and BaseURL are required.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("openaicompat: Name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat %s: BaseURL is required", cfg.Name)
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	c := &Client{
		HTTPClient: provider.NewHTTPClient(cfg.Name, strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1"), cfg.Timeout, headers),
		maxTokens:  cfg.MaxTokens,
	}
	if len(cfg.ModelMapping) > 0 {
		mapping := cfg.ModelMapping
		c.ModelMapper = func(model string) string {
			if mapped, ok := mapping[model]; ok {
				return mapped
			}
			return model
		}
	}
	return c, nil
}

// Invoke sends the prompt as a single user message.
func (c *Client) Invoke(ctx context.Context, inv *provider.Invocation) (string, error) {
	model := inv.ModelID
	if c.ModelMapper != nil {
		model = c.ModelMapper(model)
	}

	req := ChatCompletionRequest{
		Model:    model,
		Messages: []ChatMessage{userMessage(inv.Prompt)},
		N:        1,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}

	var resp ChatCompletionResponse
	if err := c.PostJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", provider.Rejected(c.Name(), statusFromCode(resp.Error.Code), resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", provider.EmptyResponse(c.Name())
	}

	text := resp.Choices[0].Message.Text()
	if strings.TrimSpace(text) == "" {
		return "", provider.EmptyResponse(c.Name())
	}
	return text, nil
}

// ListModels queries /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	var resp ChatModelsResponse
	if err := c.GetJSON(ctx, "/v1/models", &resp); err != nil {
		return nil, err
	}
	models := make([]provider.ModelInfo, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// statusFromCode recovers an HTTP-like status from an embedded error code,
// which OpenRouter sends as a number.
func statusFromCode(code any) int {
	if f, ok := code.(float64); ok && f >= 400 && f < 600 {
		return int(f)
	}
	return 0
}
