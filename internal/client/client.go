// Package client talks to a chorewheel server over HTTP. A Client is a
// tracker.Store and a tracker.EventSource.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/chorewheel/internal/tracker"
)

// IdempotencyHeader carries the key that lets the server recognize a
// retried toggle.
const IdempotencyHeader = "X-Idempotency-Key"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap classifies the error. Gateway and availability statuses mean the
// store could not be reached; anything else is a rejection.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return tracker.ErrStoreUnavailable
	default:
		return tracker.ErrStoreRejected
	}
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	retries uint64
	backoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets how often an unavailable store is retried and the first
// backoff delay. Zero retries disables retrying.
func WithRetry(retries uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "client"),
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request. body, when not nil, is sent as JSON; out, when not
// nil, receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, tracker.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&payload)
		return fmt.Errorf("%s %s: %w", method, path, &APIError{Status: resp.StatusCode, Message: payload.Error})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w: %w", method, path, tracker.ErrStoreRejected, err)
	}
	return nil
}

// doRetry is do with exponential backoff while the store is unavailable.
// Only requests that are safe to repeat go through here.
func (c *Client) doRetry(ctx context.Context, method, path string, header http.Header, body, out any) error {
	if c.retries == 0 {
		return c.do(ctx, method, path, header, body, out)
	}
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.do(ctx, method, path, header, body, out)
		if errors.Is(err, tracker.ErrStoreUnavailable) {
			c.logger.Debug("retrying", "method", method, "path", path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRetry(ctx, http.MethodGet, path, nil, nil, out)
}

// newIdempotencyKey returns a header set with a fresh idempotency key.
func newIdempotencyKey() http.Header {
	h := http.Header{}
	h.Set(IdempotencyHeader, uuid.NewString())
	return h
}
