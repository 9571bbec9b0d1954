package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/chorus/pkg/debug"
)

// DefaultTimeout caps a single backend call when the context carries no
// earlier deadline.
const DefaultTimeout = 120 * time.Second

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// HTTPClient performs JSON requests against one backend and maps every
// failure onto *Error. Adapters embed it and add their wire types.
type HTTPClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// NewHTTPClient creates a client for the backend at baseURL. Headers are
// sent with every request.
func NewHTTPClient(name, baseURL string, timeout time.Duration, headers map[string]string) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return &HTTPClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		headers:    h,
	}
}

// Name returns the provider name used in errors.
func (c *HTTPClient) Name() string { return c.name }

// BaseURL returns the normalized base URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// PostJSON sends in as a JSON body to path and decodes the answer into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// GetJSON fetches path and decodes the answer into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	debug.Log("providers", "backend request", "provider", c.name, "method", method, "url", url, "body_bytes", len(body))
	if body != nil {
		debug.Trace("providers", "backend request body", "provider", c.name, "body", string(body))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		debug.Log("providers", "backend transport error", "provider", c.name, "error", err, "elapsed", time.Since(start))
		return TransportError(ctx, c.name, err)
	}
	defer resp.Body.Close()

	debug.Log("providers", "backend response", "provider", c.name, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPError(c.name, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError(ctx, c.name, err)
	}
	debug.Trace("providers", "backend response body", "provider", c.name, "body", string(data))

	if err := json.Unmarshal(data, out); err != nil {
		return Malformed(c.name, err)
	}
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// HTTPError converts a non-2xx response into a ProviderRejected error,
// taking the detail from the backend's error body when it has one.
func HTTPError(name string, resp *http.Response) *Error {
	message := ExtractErrorMessage(resp.Body)
	if message == "" {
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			message = "invalid request to backend"
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			message = "backend authentication failed"
		case resp.StatusCode == http.StatusNotFound:
			message = "backend resource not found"
		case resp.StatusCode == http.StatusTooManyRequests:
			message = "backend rate limit exceeded"
		case resp.StatusCode >= http.StatusInternalServerError:
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		default:
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)
		}
	}
	return Rejected(name, resp.StatusCode, message)
}

// ExtractErrorMessage reads an error body and returns its message. OpenAI,
// Anthropic and Gemini all nest it under error.message; some proxies send
// error as a plain string or a top-level message.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &flat) == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}
	return ""
}
