package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept for logging.
const maxErrorBody = 512

// caller performs one generation call with bounded retry. Satisfied by
// Client; faked in dispatcher tests.
type caller interface {
	Generate(ctx context.Context, model, credential string, payload generateRequest, maxRetries int) ([]byte, error)
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithBackoff(cfg BackoffConfig) ClientOption {
	return func(c *Client) {
		c.backoff = cfg
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// withSleep replaces the retry sleep, for tests.
func withSleep(sleep func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client speaks the generateContent wire protocol. Error statuses are
// inspected, never thrown: 429 fails fast for the dispatcher's credential
// rotation, 503 and transport timeouts retry with exponential backoff,
// anything else fails immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    BackoffConfig
	sleep      func(time.Duration)
	logger     *slog.Logger
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		backoff:    DefaultBackoffConfig(),
		sleep:      time.Sleep,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Generate posts the payload to the model endpoint, retrying only
// service-unavailable responses and transport timeouts, up to maxRetries
// total attempts.
func (c *Client) Generate(ctx context.Context, model, credential string, payload generateRequest, maxRetries int) ([]byte, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, model, url.QueryEscape(credential))

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := c.post(ctx, endpoint, body)
		if err != nil {
			if !isTimeout(err) {
				return nil, err
			}
			lastErr = ErrTimeout
			c.logger.Debug("generation attempt timed out",
				"model", model, "attempt", attempt)
			if attempt < maxRetries-1 {
				c.sleep(c.backoff.Delay(attempt))
			}
			continue
		}

		raw, status, headers := drain(resp)

		switch {
		case status == http.StatusOK:
			return raw, nil

		case status == http.StatusTooManyRequests:
			return nil, ErrQuotaExceeded

		case status == http.StatusServiceUnavailable:
			lastErr = ErrServiceUnavailable
			c.logger.Debug("provider unavailable",
				"model", model, "attempt", attempt)
			if attempt < maxRetries-1 {
				c.sleep(c.backoff.DelayFor(attempt, headers))
			}

		default:
			return nil, &APIError{Status: status, Body: truncate(raw, maxErrorBody)}
		}
	}

	return nil, lastErr
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func drain(resp *http.Response) (body []byte, status int, headers http.Header) {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	return raw, resp.StatusCode, resp.Header
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
