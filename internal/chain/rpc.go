package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/mtlprog/nftstate/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
	DefaultBackoffMult = 2.0
)

// revertCode is the JSON-RPC error code nodes use for reverts carrying revert data.
const revertCode = 3

// ErrReverted indicates that the contract call reverted or the contract has no such method.
var ErrReverted = errors.New("execution reverted")

// Observer receives the latency and outcome of every RPC call.
type Observer interface {
	ObserveRPC(method string, d time.Duration, err error)
}

// Client is an EVM JSON-RPC client over HTTP with retries, backoff and request-rate limiting.
type Client struct {
	eth         *ethclient.Client
	httpClient  *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	limiter     *rate.Limiter
	observer    Observer
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithObserver reports every call to o.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client for the HTTP JSON-RPC endpoint.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := c.httpClient
	if c.limiter != nil {
		limited := *hc
		limited.Transport = &limitedTransport{base: hc.Transport, limiter: c.limiter}
		hc = &limited
	}

	rc, err := rpc.DialOptions(context.Background(), endpoint, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	c.eth = ethclient.NewClient(rc)
	return c, nil
}

// Close releases the underlying RPC client.
func (c *Client) Close() {
	c.eth.Close()
}

// limitedTransport waits for the limiter before every HTTP request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// do runs fn with retries and exponential backoff.
// Transport failures are wrapped with domain.ErrSourceUnavailable; JSON-RPC errors are not retried.
func (c *Client) do(ctx context.Context, method string, fn func(ctx context.Context) error) (err error) {
	if c.observer != nil {
		start := time.Now()
		defer func() { c.observer.ObserveRPC(method, time.Since(start), err) }()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(time.Duration(float64(delay)*c.backoffMult), c.maxDelay)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return asRevert(err, rpcErr)
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %s: max retries exceeded: %w", domain.ErrSourceUnavailable, method, lastErr)
}

// asRevert maps a node-reported revert onto ErrReverted, decoding the revert reason when present.
func asRevert(err error, rpcErr rpc.Error) error {
	if rpcErr.ErrorCode() != revertCode && !strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
		return err
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(raw); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return fmt.Errorf("%w: %s", ErrReverted, reason)
				}
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrReverted, err)
}
