// Package geocode turns photo coordinates into human-readable addresses
// using a Nominatim-compatible reverse geocoding service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent = "geocam/1.0 (+https://github.com/starford/geocam)"
	DefaultTimeout   = 10 * time.Second

	// responses above this size are not addresses
	maxBodyBytes = 1 << 20
)

// Client performs reverse lookups.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the reverse lookup URL.
func WithEndpoint(u string) ClientOption { return func(c *Client) { c.endpoint = u } }

// WithUserAgent sets the identifying User-Agent header the service requires.
func WithUserAgent(ua string) ClientOption { return func(c *Client) { c.userAgent = ua } }

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.httpClient = h } }

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// NewClient creates a reverse geocoding client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Resolve looks up the address at lat/lng. Any failure yields ok=false;
// there is no retry.
func (c *Client) Resolve(ctx context.Context, lat, lng float64) (string, bool) {
	addr, err := c.lookup(ctx, lat, lng)
	if err != nil {
		c.logger.Debug("geocode: unresolved",
			slog.Float64("lat", lat), slog.Float64("lng", lng), slog.String("error", err.Error()))
		return "", false
	}
	return addr, true
}

func (c *Client) lookup(ctx context.Context, lat, lng float64) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "14")
	q.Set("addressdetails", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call reverse API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse API error (status %d)", resp.StatusCode)
	}

	var out reverseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	addr := strings.TrimSpace(out.DisplayName)
	if addr == "" {
		return "", fmt.Errorf("response has no display_name")
	}
	return addr, nil
}
