package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mtlprog/nftstate/internal/domain"
)

// ErrNotFound indicates that the indexer has no record for the requested resource.
var ErrNotFound = errors.New("indexer resource not found")

// Client is an HTTP client for the marketplace indexer with retry on 429 and a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new indexer client.
func NewClient(baseURL string, maxRetries int, baseDelay, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "indexer",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// do performs a request through the breaker. Every failure is reported as domain.ErrSourceUnavailable
// except a 404, which is returned as ErrNotFound and does not trip the breaker.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var notFound bool
	body, err := c.breaker.Execute(func() ([]byte, error) {
		b, status, err := c.send(ctx, method, path, payload)
		if status == http.StatusNotFound {
			notFound = true
			return nil, nil
		}
		return b, err
	})
	if notFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return body, nil
}

// send performs an HTTP request with retry on 429.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	url := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("creating request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, resp.StatusCode, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, resp.StatusCode, lastErr
		}

		return nil, resp.StatusCode, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	return nil, 0, lastErr
}

// getJSON performs a GET request and unmarshals the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: parsing JSON from %s: %w", domain.ErrSourceUnavailable, path, err)
	}
	return nil
}
