package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client wraps http.Client with client-side rate limiting and retries.
// Market-data providers meter by the minute (Alpha Vantage free tier allows
// 5 requests/minute), so the limiter spaces requests evenly across it.
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// ClientOptions holds options for creating a new Client.
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerMin  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new HTTP client with rate limiting.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMin == 0 {
		opts.RequestsPerMin = 5
	}

	interval := time.Minute / time.Duration(opts.RequestsPerMin)
	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// DoRequest performs an HTTP request with rate limiting and retries.
// Server errors and 429 are retried with exponential backoff; other non-200
// statuses fail immediately.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		resp.Body.Close()
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, err
	}

	return resp, nil
}

// HTTPStatusError represents an error due to a non-200 HTTP status code.
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-200 status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
