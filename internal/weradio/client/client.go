package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single non-upload request.
	DefaultTimeout = 30 * time.Second

	// Retry configuration for idempotent reads
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// TokenSource supplies the opaque bearer credential. An empty token means
// the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// Client talks to the station backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryWait sets the base wait between read retries.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) {
		c.retryWait = d
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     logger.Named("client"),
		retryWait:  baseRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves a backend path.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// HTTPClient returns the underlying HTTP client, shared with the live session loaders.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get performs a GET request. Network errors and 5xx responses are retried.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.request(ctx, http.MethodGet, path, nil, result, maxRetries)
}

// Post performs a POST request with a JSON body. Mutations are never retried.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.request(ctx, http.MethodPost, path, body, result, 0)
}

func (c *Client) request(ctx context.Context, method, path string, body any, result any, retries int) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.URL(path)
	c.logger.Debug("request", zap.String("method", method), zap.String("url", fullURL), zap.ByteString("body", jsonBody))

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.Int("max", retries),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		respBody, status, err := c.do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.logger.Debug("network error", zap.Error(err))
			continue
		}

		if status >= 500 {
			lastErr = parseAPIError(status, respBody)
			c.logger.Debug("server error", zap.Int("status", status), zap.Error(lastErr))
			continue
		}
		if status >= 400 {
			return parseAPIError(status, respBody)
		}

		return decode(respBody, result)
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("request failed after %d retries: %w", retries, lastErr)
}

// do sends req with the bearer credential and reads the whole response.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("response", zap.Int("status", resp.StatusCode), zap.String("url", req.URL.String()))
	return respBody, resp.StatusCode, nil
}

func decode(body []byte, result any) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// APIError is a non-2xx backend response. Message is the server's own text.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// IsUnauthorized returns true for 401 responses.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		apiErr.Details = payload.Details
	}
	return apiErr
}

// UserMessage returns the server-provided message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}
