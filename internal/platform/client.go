// Package platform is the low-level HTTP client for the OFlow backend.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/version"
)

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 30 * time.Second

// Client is the OFlow backend API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	AnonKey    string

	logger *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithAnonKey sets the public project key sent as the apikey header.
func WithAnonKey(key string) Option {
	return func(c *Client) { c.AnonKey = key }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.Named("platform") }
}

// NewClient creates a new backend API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Token is sent as a bearer token when set.
	Token string
	// Op names the call in errors and logs, e.g. "list teams".
	Op string
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Do performs req and decodes a 2xx JSON body into target (if non-nil).
//
// Transport failures become NET-001, deadline overruns NET-002, 5xx and 429
// NET-003 and 401 SESSION-003. Other non-2xx statuses return a bare *APIError
// for the caller to classify.
func (c *Client) Do(ctx context.Context, req Request, target any) error {
	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return err
	}
	return parseResponse(req.Op, resp, target)
}

// doRequest performs an HTTP request with authentication
func (c *Client) doRequest(ctx context.Context, r Request) (*http.Response, error) {
	var reqBody io.Reader
	if r.Body != nil {
		jsonBody, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	u := c.BaseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AnonKey != "" {
		req.Header.Set("apikey", c.AnonKey)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "backend request failed",
			"op", r.Op, "method", r.Method, "path", r.Path, "request_id", requestID, "error", err)
		return nil, transportError(ctx, r.Op, err)
	}

	c.logger.DebugContext(ctx, "backend request",
		"op", r.Op, "method", r.Method, "path", r.Path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))
	return resp, nil
}

func transportError(ctx context.Context, op string, err error) error {
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.NewTimeoutError(op, err)
	}
	return errors.NewNetworkError(op, err)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

func (e ErrorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Error, e.Message, e.Msg} {
		if s != "" {
			return s
		}
	}
	return ""
}

// parseResponse parses the response body into the target struct
func parseResponse(op string, resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.text() != "" {
			apiErr.Message = errResp.text()
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return errors.Wrap(errors.ErrCodeSessionUnauthorized, fmt.Sprintf("%s: unauthorized", op), apiErr)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return errors.Wrap(errors.ErrCodeServer, fmt.Sprintf("%s: backend unavailable", op), apiErr)
		}
		return apiErr
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return errors.Wrap(errors.ErrCodeAuthInvalidResponse, fmt.Sprintf("%s: failed to decode response", op), err)
		}
	}

	return nil
}
