package priceapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client provides access to the crowd price service REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new price service client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// GetAggregate fetches the crowd aggregate for one item. A nil result
// with a nil error means the service has no aggregate for the item yet.
func (c *Client) GetAggregate(ctx context.Context, item int) (*Aggregate, error) {
	path := fmt.Sprintf("/v1/items/%d/aggregate", item)

	var out Aggregate
	found, err := c.getOptional(ctx, path, &out)
	if err != nil {
		return nil, fmt.Errorf("get aggregate for item %d: %w", item, err)
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// SubmitPrice uploads one locally learned price.
func (c *Client) SubmitPrice(ctx context.Context, sub Submission) error {
	if err := c.post(ctx, "/v1/prices", sub); err != nil {
		return fmt.Errorf("submit price for item %d: %w", sub.Item, err)
	}
	return nil
}
