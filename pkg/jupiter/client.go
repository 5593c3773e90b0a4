package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"soltabs/pkg/metrics"
	"soltabs/pkg/models"
)

var LiteBaseURL = "https://lite-api.jup.ag"
var KeyedBaseURL = "https://api.jup.ag"
var DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound means the metadata endpoint returned no record with an address.
	ErrNotFound = errors.New("token not found")
	// ErrNetwork wraps transport, status and decode failures.
	ErrNetwork = errors.New("token api request failed")
)

const (
	endpointToken = "token"
	endpointPrice = "price"
)

// Client talks to the token metadata and price endpoints. Requests are single
// attempt; the only deadline is the http.Client timeout and the caller's context.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	apiKey  string

	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Client)

// WithBaseURL pins the API host, overriding the lite/keyed host selection.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey switches between the free and the keyed API host.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

// BaseURL returns the host requests are currently sent to.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURLLocked()
}

func (c *Client) baseURLLocked() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if c.apiKey != "" {
		return KeyedBaseURL
	}
	return LiteBaseURL
}

// FetchTokenInfo loads metadata for address and then tries to attach a price.
// A failed price lookup leaves PriceData nil and does not fail the call.
func (c *Client) FetchTokenInfo(ctx context.Context, address string) (models.TokenRecord, error) {
	start := time.Now()
	var rec models.TokenRecord
	u := fmt.Sprintf("%s/tokens/v1/token/%s", c.BaseURL(), url.PathEscape(address))
	status, err := c.getJSON(ctx, u, &rec)
	switch {
	case status == http.StatusNotFound:
		err = fmt.Errorf("%w: %s", ErrNotFound, address)
	case err == nil && strings.TrimSpace(rec.Address) == "":
		err = fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	c.observe(endpointToken, err, start)
	if err != nil {
		return models.TokenRecord{}, err
	}

	rec.PriceData = c.FetchPriceOnly(ctx, address)
	return rec, nil
}

// FetchPriceOnly returns the price snapshot for address, or nil on any failure
// or when the response has no entry for it.
func (c *Client) FetchPriceOnly(ctx context.Context, address string) *models.PriceData {
	start := time.Now()
	var resp struct {
		Data map[string]*models.PriceData `json:"data"`
	}
	u := fmt.Sprintf("%s/price/v2?ids=%s&showExtraInfo=true", c.BaseURL(), url.QueryEscape(address))
	_, err := c.getJSON(ctx, u, &resp)
	if err != nil {
		c.observe(endpointPrice, err, start)
		c.logger.Debug("price fetch failed", slog.String("address", address), slog.Any("error", err))
		return nil
	}
	pd := resp.Data[address]
	if pd == nil {
		c.metrics.ObserveFetch(endpointPrice, "missing", time.Since(start).Seconds())
		return nil
	}
	c.observe(endpointPrice, nil, start)
	return pd
}

// Ping checks that the price endpoint answers for the wrapped SOL mint.
func (c *Client) Ping(ctx context.Context, mint string) error {
	var resp struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	u := fmt.Sprintf("%s/price/v2?ids=%s", c.BaseURL(), url.QueryEscape(mint))
	status, err := c.getJSON(ctx, u, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: price endpoint returned 404", ErrNetwork)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	c.mu.RLock()
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode: %v", ErrNetwork, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) observe(endpoint string, err error, start time.Time) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	c.metrics.ObserveFetch(endpoint, result, time.Since(start).Seconds())
}
