package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient wraps http.Client with a bounded per-request timeout for
// calls to external services.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
	logger  Logger
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, timeout time.Duration, logger Logger) *HTTPClient {
	return &HTTPClient{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// DoRequest executes the request and returns the buffered response body
// with the status code. The body is read in full before the request
// deadline is released, so callers never race the timeout while
// decoding.
func (c *HTTPClient) DoRequest(ctx context.Context, method, requestURL, contentType string, body io.Reader) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// PostForm posts URL-encoded form values and returns the buffered
// response body with the status code
func (c *HTTPClient) PostForm(ctx context.Context, requestURL string, values url.Values) ([]byte, int, error) {
	c.logger.Debug("posting form", "url", requestURL)
	return c.DoRequest(ctx, http.MethodPost, requestURL,
		"application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}
