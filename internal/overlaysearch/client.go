// Package overlaysearch queries the upstream imagery provider for overlay
// footprints intersecting a site.
package overlaysearch

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

	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConfigured is returned when no base URL is set.
	ErrNotConfigured = errors.New("overlay search base url not configured")
	// ErrUpstream wraps transport failures and non-2xx responses.
	ErrUpstream = errors.New("overlay provider failed")
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	Endpoint    string
	QueryParams string
	Headers     map[string]string
	Timeout     time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit  float64
	Burst      int
	Techniques []string
}

// Client talks to the provider search endpoint.
type Client struct {
	url        string
	headers    map[string]string
	techniques []string
	http       *http.Client
	limiter    *rate.Limiter
	log        logging.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log logging.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	url := strings.TrimRight(cfg.BaseURL, "/") + cfg.Endpoint
	if cfg.QueryParams != "" {
		url += "?" + strings.TrimPrefix(cfg.QueryParams, "?")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		url:        url,
		headers:    cfg.Headers,
		techniques: cfg.Techniques,
		http:       &http.Client{Timeout: timeout},
		log:        logging.Noop(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search posts filter and returns the raw provider records.
func (c *Client) Search(ctx context.Context, filter Filter) ([]ProviderOverlay, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", ErrUpstream, err)
		}
	}

	body, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	c.log.Debug(ctx, "overlay search complete",
		logging.Int("overlays", len(out.Entities)),
		logging.Duration("took", time.Since(start)),
	)
	return out.Entities, nil
}

// Overlays searches for overlays intersecting siteWKT within [start, end].
// Records without an id are dropped.
func (c *Client) Overlays(ctx context.Context, siteWKT string, start, end time.Time) ([]model.Overlay, error) {
	raw, err := c.Search(ctx, NewFilter(siteWKT, start, end, c.techniques))
	if err != nil {
		return nil, err
	}
	out := make([]model.Overlay, 0, len(raw))
	for _, r := range raw {
		if r.ExclusiveID.EntityID == "" {
			continue
		}
		out = append(out, r.ToModel())
	}
	return out, nil
}
