package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"SentimentScanner/internal/config"
	"SentimentScanner/internal/ports"
)

// Limiter is the slice of the rate limiter the client needs. Every phase
// call (submit and each fetch) acquires a slot before going out.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client drives the provider's two-phase task protocol: submit a query for
// a handle, wait a fixed settle delay, then poll the handle for content.
// Throttling (HTTP 429) at either phase is retried in place with
// exponential backoff and never surfaces as a query failure.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	limiter      Limiter
	logger       *slog.Logger
	settleDelay  time.Duration
	pollAttempts int
	backoffSeed  time.Duration
	backoffMax   time.Duration
	onRequest    func()
}

var _ ports.SearchProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRequestHook registers a callback fired before every outbound phase
// call; the orchestrator uses it to count billable requests.
func WithRequestHook(hook func()) Option {
	return func(c *Client) {
		c.onRequest = hook
	}
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.SearchConfig, limiter Limiter, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		limiter:      limiter,
		logger:       logger,
		settleDelay:  cfg.SettleDelay(),
		pollAttempts: cfg.PollAttempts,
		backoffSeed:  cfg.BackoffSeed(),
		backoffMax:   cfg.BackoffMax(),
	}
	if c.pollAttempts < 1 {
		c.pollAttempts = 1
	}
	if c.backoffSeed <= 0 {
		c.backoffSeed = 500 * time.Millisecond
	}
	if c.backoffMax < c.backoffSeed {
		c.backoffMax = c.backoffSeed
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type resultResponse struct {
	Status  string `json:"status"`
	Content string `json:"content"`
}

// FetchContent resolves one query to raw result content, or
// ports.ErrContentUnavailable when the provider rejects the query or the
// result never becomes ready.
func (c *Client) FetchContent(ctx context.Context, query string) (string, error) {
	handle, err := c.submit(ctx, query)
	if err != nil {
		return "", err
	}

	if err := sleepCtx(ctx, c.settleDelay); err != nil {
		return "", err
	}

	return c.pollResult(ctx, query, handle)
}

// submit runs the first phase until the provider accepts or rejects the
// query. Only throttling is retried.
func (c *Client) submit(ctx context.Context, query string) (string, error) {
	backoff := c.backoffSeed
	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		status, body, err := c.call(ctx, http.MethodPost, "/v1/tasks", map[string]string{"query": query})
		if err != nil {
			return "", fmt.Errorf("submit query: %w", err)
		}

		switch {
		case status == http.StatusTooManyRequests:
			c.debug("submit throttled", "query", query, "backoff", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", err
			}
			backoff = c.nextBackoff(backoff)
			continue
		case status == http.StatusAccepted || status == http.StatusOK:
			var resp submitResponse
			if err := json.Unmarshal(body, &resp); err != nil || resp.TaskID == "" {
				return "", fmt.Errorf("submit %q: missing task handle: %w", query, ports.ErrContentUnavailable)
			}
			return resp.TaskID, nil
		default:
			return "", fmt.Errorf("submit %q: provider status %d: %w", query, status, ports.ErrContentUnavailable)
		}
	}
}

// pollResult runs the second phase: a bounded number of fetch attempts,
// re-waiting the settle delay after each not-ready answer.
func (c *Client) pollResult(ctx context.Context, query, handle string) (string, error) {
	backoff := c.backoffSeed
	attempts := 0
	for attempts < c.pollAttempts {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		status, body, err := c.call(ctx, http.MethodGet, "/v1/tasks/"+handle, nil)
		if err != nil {
			return "", fmt.Errorf("fetch result: %w", err)
		}

		switch {
		case status == http.StatusTooManyRequests:
			c.debug("fetch throttled", "handle", handle, "backoff", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", err
			}
			backoff = c.nextBackoff(backoff)
			continue
		case status == http.StatusOK:
			var resp resultResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("fetch %q: malformed result: %w", handle, ports.ErrContentUnavailable)
			}
			if resp.Status == "done" {
				return resp.Content, nil
			}
			// not ready yet; wait and poll again
			attempts++
			if attempts < c.pollAttempts {
				if err := sleepCtx(ctx, c.settleDelay); err != nil {
					return "", err
				}
			}
		default:
			return "", fmt.Errorf("fetch %q: provider status %d: %w", handle, status, ports.ErrContentUnavailable)
		}
	}

	return "", fmt.Errorf("result for %q never became ready: %w", query, ports.ErrContentUnavailable)
}

func (c *Client) call(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if c.onRequest != nil {
		c.onRequest()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}

	return resp.StatusCode, body, nil
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.backoffMax {
		next = c.backoffMax
	}
	return next
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
